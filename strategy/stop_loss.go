package strategy

import (
	"fmt"
	"math"

	"github.com/evdnx/gorisk/config"
)

// Stop-loss selectors.
const (
	StopFixed    = "fixed"
	StopDynamic  = "dynamic"
	StopTrailing = "trailing"
	StopLadder   = "ladder"
)

// StopLossStrategy tracks a single open long position's protective exit.
// An instance is owned by exactly one position and must only be called by
// that position's evaluator; there is no internal locking.
//
// atr <= 0 means "no ATR available for this tick".
type StopLossStrategy interface {
	// CalculateStopLoss returns the stop-loss line for the current tick and
	// updates the instance state (highest price, trailing activation, tier).
	CalculateStopLoss(price, atr float64) float64
	// ShouldClose reports whether the position must be closed, with a
	// human-readable reason identifying the trigger.
	ShouldClose(price, atr float64) (bool, string)
	// CurrentStopLoss returns the most recently computed stop-loss line.
	CurrentStopLoss() float64
	Type() string
}

var stopLossFactories = map[string]func(config.StopLossConfig) StopLossStrategy{
	StopFixed:    func(c config.StopLossConfig) StopLossStrategy { return &fixedStopLoss{stopLossState: newStopLossState(c)} },
	StopDynamic:  func(c config.StopLossConfig) StopLossStrategy { return &dynamicStopLoss{stopLossState: newStopLossState(c)} },
	StopTrailing: func(c config.StopLossConfig) StopLossStrategy { return &trailingStopLoss{stopLossState: newStopLossState(c)} },
	StopLadder:   func(c config.StopLossConfig) StopLossStrategy { return &ladderStopLoss{stopLossState: newStopLossState(c)} },
}

// StopLossStrategies lists the known stop-loss selectors.
func StopLossStrategies() []string {
	return []string{StopFixed, StopDynamic, StopTrailing, StopLadder}
}

// NewStopLoss builds a stop-loss instance for one freshly opened position.
func NewStopLoss(cfg config.StopLossConfig) (StopLossStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, ok := stopLossFactories[cfg.StrategyType]
	if !ok {
		return nil, &ConfigurationError{Concern: "stop_loss", Selector: cfg.StrategyType}
	}
	return factory(cfg.WithDefaults()), nil
}

// stopLossState holds the per-instance mutable fields shared by every
// variant. The config is fully defaulted at construction and read-only
// afterwards.
type stopLossState struct {
	cfg config.StopLossConfig

	currentStop    float64
	highestPrice   float64
	trailingActive bool
	ladderStep     int // index of the last tier reached, -1 before any
}

func newStopLossState(cfg config.StopLossConfig) stopLossState {
	return stopLossState{cfg: cfg, highestPrice: cfg.EntryPrice, ladderStep: -1}
}

func (s *stopLossState) CurrentStopLoss() float64 { return s.currentStop }

// HighestPrice reports the highest price seen since the position opened.
func (s *stopLossState) HighestPrice() float64 { return s.highestPrice }

// TrailingActive reports whether the trailing ratchet has been armed.
func (s *stopLossState) TrailingActive() bool { return s.trailingActive }

// LadderStep reports the last ladder tier reached (-1 = none).
func (s *stopLossState) LadderStep() int { return s.ladderStep }

// fixedStop is the fixed-percent stop line, raised to the max-loss-derived
// price when that cap is the looser (higher) of the two.
func (s *stopLossState) fixedStop() float64 {
	stop := s.cfg.EntryPrice * (1 - s.cfg.StopLossPercent)
	if s.cfg.MaxLossAmount > 0 && s.cfg.PositionSize > 0 {
		byAmount := s.cfg.EntryPrice - s.cfg.MaxLossAmount/s.cfg.PositionSize
		stop = math.Max(stop, byAmount)
	}
	return stop
}

// maxLossBreached checks the absolute loss cap for the current price.
func (s *stopLossState) maxLossBreached(price float64) (bool, string) {
	if s.cfg.MaxLossAmount <= 0 {
		return false, ""
	}
	potential := (s.cfg.EntryPrice - price) * s.cfg.PositionSize
	if potential >= s.cfg.MaxLossAmount {
		return true, fmt.Sprintf("max loss cap reached: %.2f >= %.2f", potential, s.cfg.MaxLossAmount)
	}
	return false, ""
}

// fixedStopLoss closes when price crosses a static percent line.
type fixedStopLoss struct {
	stopLossState
}

func (f *fixedStopLoss) Type() string { return StopFixed }

func (f *fixedStopLoss) CalculateStopLoss(price, atr float64) float64 {
	f.currentStop = f.fixedStop()
	return f.currentStop
}

func (f *fixedStopLoss) ShouldClose(price, atr float64) (bool, string) {
	stop := f.CalculateStopLoss(price, atr)
	if price <= stop {
		return true, fmt.Sprintf("fixed stop triggered: price %.4f <= stop %.4f", price, stop)
	}
	return false, ""
}

// dynamicStopLoss trails the price by an ATR multiple, recomputed every
// tick. Without an ATR it behaves like the fixed variant.
type dynamicStopLoss struct {
	stopLossState
}

func (d *dynamicStopLoss) Type() string { return StopDynamic }

func (d *dynamicStopLoss) CalculateStopLoss(price, atr float64) float64 {
	if atr > 0 {
		d.currentStop = price - atr*d.cfg.ATRMultiplier
	} else {
		d.currentStop = d.fixedStop()
	}
	return d.currentStop
}

func (d *dynamicStopLoss) ShouldClose(price, atr float64) (bool, string) {
	stop := d.CalculateStopLoss(price, atr)

	if hit, reason := d.maxLossBreached(price); hit {
		return true, reason
	}
	if price <= stop {
		return true, fmt.Sprintf("dynamic stop triggered: price %.4f <= stop %.4f", price, stop)
	}
	return false, ""
}

// trailingStopLoss arms once unrealized profit reaches the activation
// threshold, then ratchets the stop upward with the highest price seen.
type trailingStopLoss struct {
	stopLossState
}

func (t *trailingStopLoss) Type() string { return StopTrailing }

func (t *trailingStopLoss) CalculateStopLoss(price, atr float64) float64 {
	t.highestPrice = math.Max(t.highestPrice, price)

	// One-way activation.
	if !t.trailingActive && t.cfg.ActivationProfit > 0 &&
		profitPercent(price, t.cfg.EntryPrice) >= t.cfg.ActivationProfit {
		t.trailingActive = true
	}

	if t.trailingActive && t.cfg.TrailingPercent > 0 {
		// highestPrice is monotonic, so the stop never moves down.
		t.currentStop = t.highestPrice * (1 - t.cfg.TrailingPercent)
		return t.currentStop
	}

	t.currentStop = t.cfg.EntryPrice * (1 - t.cfg.StopLossPercent)
	return t.currentStop
}

func (t *trailingStopLoss) ShouldClose(price, atr float64) (bool, string) {
	stop := t.CalculateStopLoss(price, atr)

	if t.trailingActive {
		if price <= stop {
			return true, fmt.Sprintf("trailing stop triggered: price %.4f <= stop %.4f", price, stop)
		}
	} else if price <= stop {
		return true, fmt.Sprintf("initial stop triggered: price %.4f <= stop %.4f", price, stop)
	}

	if hit, reason := t.maxLossBreached(price); hit {
		return true, reason
	}
	return false, ""
}

// ladderStopLoss moves the stop above entry as profit tiers are reached.
type ladderStopLoss struct {
	stopLossState
}

func (l *ladderStopLoss) Type() string { return StopLadder }

func (l *ladderStopLoss) CalculateStopLoss(price, atr float64) float64 {
	profit := profitPercent(price, l.cfg.EntryPrice)

	// Highest tier whose profit threshold is reached right now. The tiers
	// are ascending, so stop at the first miss.
	reached := -1
	for i, step := range l.cfg.LadderSteps {
		if profit < step.ProfitPercent {
			break
		}
		reached = i
	}

	if reached > l.ladderStep {
		l.ladderStep = reached
	}

	// The stop follows the tier the current profit sustains; when profit
	// recedes below every threshold the fixed line applies again. The
	// recorded ladderStep only ever advances.
	if reached >= 0 {
		l.currentStop = l.cfg.EntryPrice * (1 + l.cfg.LadderSteps[reached].TargetPercent)
	} else {
		l.currentStop = l.fixedStop()
	}
	return l.currentStop
}

func (l *ladderStopLoss) ShouldClose(price, atr float64) (bool, string) {
	stop := l.CalculateStopLoss(price, atr)

	if hit, reason := l.maxLossBreached(price); hit {
		return true, reason
	}
	if price <= stop {
		if stop > l.cfg.EntryPrice {
			return true, fmt.Sprintf("ladder stop triggered (tier %d): price %.4f <= stop %.4f",
				l.ladderStep+1, price, stop)
		}
		return true, fmt.Sprintf("ladder stop triggered: price %.4f <= stop %.4f", price, stop)
	}
	return false, ""
}
