package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile bundles the per-concern configs a host keeps on disk for one
// monitored position. Sections are optional; a nil section means the
// corresponding strategy is not run.
type Profile struct {
	Position   *PositionConfig   `yaml:"position"`
	StopLoss   *StopLossConfig   `yaml:"stop_loss"`
	TakeProfit *TakeProfitConfig `yaml:"take_profit"`
	Alerts     []AlertConfig     `yaml:"alerts"`
}

// LoadProfile reads and validates a YAML risk profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Validate runs each present section's validation.
func (p *Profile) Validate() error {
	if p.Position != nil {
		if err := p.Position.Validate(); err != nil {
			return fmt.Errorf("position: %w", err)
		}
	}
	if p.StopLoss != nil {
		if err := p.StopLoss.Validate(); err != nil {
			return fmt.Errorf("stop_loss: %w", err)
		}
	}
	if p.TakeProfit != nil {
		if err := p.TakeProfit.Validate(); err != nil {
			return fmt.Errorf("take_profit: %w", err)
		}
	}
	for i := range p.Alerts {
		if err := p.Alerts[i].Validate(); err != nil {
			return fmt.Errorf("alerts[%d]: %w", i, err)
		}
	}
	return nil
}
