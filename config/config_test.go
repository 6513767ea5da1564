package config

import (
	"os"
	"path/filepath"
	"testing"
)

/*
-----------------------------------------------------------------------
Test 1 – PositionConfig defaults resolve every optional parameter.
-----------------------------------------------------------------------
*/
func TestPositionConfig_WithDefaults(t *testing.T) {
	cfg := PositionConfig{AccountBalance: 10000, EntryPrice: 100}.WithDefaults()

	if cfg.KellyFraction != 0.25 {
		t.Fatalf("KellyFraction default: got %f", cfg.KellyFraction)
	}
	if cfg.FixedPercent != 0.02 {
		t.Fatalf("FixedPercent default: got %f", cfg.FixedPercent)
	}
	if cfg.RiskPerTrade != 0.02 {
		t.Fatalf("RiskPerTrade default: got %f", cfg.RiskPerTrade)
	}
	if cfg.VolatilityTarget != 0.15 {
		t.Fatalf("VolatilityTarget default: got %f", cfg.VolatilityTarget)
	}
	if cfg.MaxPositionPercent != 0.3 {
		t.Fatalf("MaxPositionPercent default: got %f", cfg.MaxPositionPercent)
	}

	// Explicit values survive.
	cfg = PositionConfig{KellyFraction: 0.5}.WithDefaults()
	if cfg.KellyFraction != 0.5 {
		t.Fatalf("explicit KellyFraction overwritten: got %f", cfg.KellyFraction)
	}
}

/*
-----------------------------------------------------------------------
Test 2 – Capital prefers TotalCapital over AccountBalance.
-----------------------------------------------------------------------
*/
func TestPositionConfig_Capital(t *testing.T) {
	cfg := PositionConfig{AccountBalance: 5000}
	if cfg.Capital() != 5000 {
		t.Fatalf("expected the balance as capital, got %f", cfg.Capital())
	}
	cfg.TotalCapital = 20000
	if cfg.Capital() != 20000 {
		t.Fatalf("expected TotalCapital to win, got %f", cfg.Capital())
	}
}

/*
-----------------------------------------------------------------------
Test 3 – Validation failures per config type.
-----------------------------------------------------------------------
*/
func TestConfig_Validate(t *testing.T) {
	pos := PositionConfig{EntryPrice: 0, AccountBalance: 100}
	if err := pos.Validate(); err == nil {
		t.Fatal("PositionConfig: expected error for zero entry price")
	}
	pos = PositionConfig{EntryPrice: 100, WinRate: 1.2}
	if err := pos.Validate(); err == nil {
		t.Fatal("PositionConfig: expected error for win rate above 1")
	}

	sl := StopLossConfig{EntryPrice: 100, PositionSize: 1, StopLossPercent: 1.5}
	if err := sl.Validate(); err == nil {
		t.Fatal("StopLossConfig: expected error for stop percent >= 1")
	}
	sl = StopLossConfig{EntryPrice: 100}
	if err := sl.Validate(); err == nil {
		t.Fatal("StopLossConfig: expected error for zero position size")
	}

	tp := TakeProfitConfig{EntryPrice: 100, PositionSize: 1, TrailingPercent: -0.1}
	if err := tp.Validate(); err == nil {
		t.Fatal("TakeProfitConfig: expected error for negative trailing percent")
	}

	al := AlertConfig{ConcentrationThreshold: 1.5}
	if err := al.Validate(); err == nil {
		t.Fatal("AlertConfig: expected error for concentration above 1")
	}
}

/*
-----------------------------------------------------------------------
Test 4 – Default ladder and partial tier tables.
-----------------------------------------------------------------------
*/
func TestConfig_DefaultTiers(t *testing.T) {
	sl := StopLossConfig{EntryPrice: 100, PositionSize: 1}.WithDefaults()
	if len(sl.LadderSteps) != 3 {
		t.Fatalf("expected 3 default stop-loss tiers, got %d", len(sl.LadderSteps))
	}
	if sl.LadderSteps[0].ProfitPercent != 0.02 || sl.LadderSteps[0].TargetPercent != 0.01 {
		t.Fatalf("unexpected first stop-loss tier: %+v", sl.LadderSteps[0])
	}

	tp := TakeProfitConfig{EntryPrice: 100, PositionSize: 1}.WithDefaults()
	if len(tp.LadderSteps) != 3 {
		t.Fatalf("expected 3 default take-profit tiers, got %d", len(tp.LadderSteps))
	}
	if len(tp.PartialSteps) != 4 {
		t.Fatalf("expected 4 default partial tiers, got %d", len(tp.PartialSteps))
	}
	total := 0.0
	for _, step := range tp.PartialSteps {
		total += step.ClosePercent
	}
	if total < 0.999 || total > 1.001 {
		t.Fatalf("default partial tiers must close the full position, got %f", total)
	}

	// User-supplied tiers survive.
	custom := StopLossConfig{
		EntryPrice:   100,
		PositionSize: 1,
		LadderSteps:  []LadderStep{{ProfitPercent: 0.01, TargetPercent: 0.005}},
	}.WithDefaults()
	if len(custom.LadderSteps) != 1 {
		t.Fatalf("explicit tiers overwritten: %+v", custom.LadderSteps)
	}
}

/*
-----------------------------------------------------------------------
Test 5 – LoadProfile reads and validates a YAML profile.
-----------------------------------------------------------------------
*/
func TestLoadProfile(t *testing.T) {
	const doc = `
position:
  strategy_type: kelly
  account_balance: 10000
  entry_price: 100
  win_rate: 0.55
  avg_win: 200
  avg_loss: 150
stop_loss:
  strategy_type: trailing
  entry_price: 100
  position_size: 1.0
  trailing_percent: 0.03
  activation_profit: 0.05
take_profit:
  strategy_type: partial
  entry_price: 100
  position_size: 1.0
alerts:
  - alert_type: drawdown
    drawdown_threshold: 0.08
  - alert_type: portfolio
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write temp profile: %v", err)
	}

	prof, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if prof.Position == nil || prof.Position.StrategyType != "kelly" {
		t.Fatalf("position section not loaded: %+v", prof.Position)
	}
	if prof.StopLoss == nil || prof.StopLoss.TrailingPercent != 0.03 {
		t.Fatalf("stop-loss section not loaded: %+v", prof.StopLoss)
	}
	if prof.TakeProfit == nil || prof.TakeProfit.StrategyType != "partial" {
		t.Fatalf("take-profit section not loaded: %+v", prof.TakeProfit)
	}
	if len(prof.Alerts) != 2 || prof.Alerts[0].DrawdownThreshold != 0.08 {
		t.Fatalf("alert sections not loaded: %+v", prof.Alerts)
	}
}

/*
-----------------------------------------------------------------------
Test 6 – LoadProfile rejects invalid sections and missing files.
-----------------------------------------------------------------------
*/
func TestLoadProfile_Errors(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}

	const bad = `
stop_loss:
  strategy_type: fixed
  entry_price: 0
  position_size: 1.0
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write temp profile: %v", err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected a validation error for the zero entry price")
	}
}
