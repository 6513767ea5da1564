package strategy

import (
	"fmt"
	"math"

	"github.com/evdnx/gorisk/config"
)

// Take-profit selectors.
const (
	TakeFixed   = "fixed"
	TakeDynamic = "dynamic"
	TakeLadder  = "ladder"
	TakePartial = "partial"
)

// Default target percents when the config leaves TakeProfitPercent unset.
// The dynamic variant parks the target further out while inactive.
const (
	defaultTakeProfitPct = 0.10
	dynamicInactivePct   = 0.15
)

// TakeProfitStrategy tracks a single open long position's profit-taking
// exit. Ladder and partial variants signal partial closes; ClosedAmount
// accumulates monotonically and never exceeds the position size. Once the
// whole position has been closed no further closes are signaled.
//
// rsi <= 0 means "no RSI available for this tick".
type TakeProfitStrategy interface {
	// CalculateTakeProfit returns the current target line and updates the
	// instance state (highest price, activation, tier bookkeeping).
	CalculateTakeProfit(price, rsi float64) float64
	// ShouldClose reports whether (part of) the position must be closed,
	// with the amount to close and a human-readable reason.
	ShouldClose(price, rsi float64) (bool, string, float64)
	// ClosedAmount returns the quantity already closed by this instance.
	ClosedAmount() float64
	// Remaining returns the quantity still open.
	Remaining() float64
	Type() string
}

var takeProfitFactories = map[string]func(config.TakeProfitConfig) TakeProfitStrategy{
	TakeFixed:   func(c config.TakeProfitConfig) TakeProfitStrategy { return &fixedTakeProfit{takeProfitState: newTakeProfitState(c)} },
	TakeDynamic: func(c config.TakeProfitConfig) TakeProfitStrategy { return &dynamicTakeProfit{takeProfitState: newTakeProfitState(c)} },
	TakeLadder:  func(c config.TakeProfitConfig) TakeProfitStrategy { return &ladderTakeProfit{takeProfitState: newTakeProfitState(c)} },
	TakePartial: func(c config.TakeProfitConfig) TakeProfitStrategy { return &partialTakeProfit{takeProfitState: newTakeProfitState(c)} },
}

// TakeProfitStrategies lists the known take-profit selectors.
func TakeProfitStrategies() []string {
	return []string{TakeFixed, TakeDynamic, TakeLadder, TakePartial}
}

// NewTakeProfit builds a take-profit instance for one freshly opened position.
func NewTakeProfit(cfg config.TakeProfitConfig) (TakeProfitStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, ok := takeProfitFactories[cfg.StrategyType]
	if !ok {
		return nil, &ConfigurationError{Concern: "take_profit", Selector: cfg.StrategyType}
	}
	return factory(cfg.WithDefaults()), nil
}

type takeProfitState struct {
	cfg config.TakeProfitConfig

	currentTarget float64
	highestPrice  float64
	active        bool
	ladderStep    int
	partialStep   int
	closedAmount  float64
}

func newTakeProfitState(cfg config.TakeProfitConfig) takeProfitState {
	return takeProfitState{cfg: cfg, highestPrice: cfg.EntryPrice}
}

func (s *takeProfitState) ClosedAmount() float64 { return s.closedAmount }

func (s *takeProfitState) Remaining() float64 {
	return s.cfg.PositionSize - s.closedAmount
}

// close books a close of up to amount, capped to what is still open, and
// returns the quantity actually closed. A dust remainder from float
// accumulation snaps to fully closed.
func (s *takeProfitState) close(amount float64) float64 {
	remaining := s.Remaining()
	if amount > remaining {
		amount = remaining
	}
	s.closedAmount += amount
	if s.Remaining() < s.cfg.PositionSize*1e-9 {
		s.closedAmount = s.cfg.PositionSize
	}
	return amount
}

// targetPct returns the configured target percent or the given default.
func (s *takeProfitState) targetPct(fallback float64) float64 {
	if s.cfg.TakeProfitPercent > 0 {
		return s.cfg.TakeProfitPercent
	}
	return fallback
}

// maxProfitBreached checks the absolute profit cap; every variant applies it
// before its own formula so a full close takes priority over partials.
func (s *takeProfitState) maxProfitBreached(price float64) (bool, string) {
	if s.cfg.MaxProfitAmount <= 0 {
		return false, ""
	}
	potential := (price - s.cfg.EntryPrice) * s.cfg.PositionSize
	if potential >= s.cfg.MaxProfitAmount {
		return true, fmt.Sprintf("max profit cap reached: %.2f >= %.2f", potential, s.cfg.MaxProfitAmount)
	}
	return false, ""
}

// fixedTakeProfit closes the full remainder at a static percent target,
// tightened by the max-profit-derived price when that cap is set.
type fixedTakeProfit struct {
	takeProfitState
}

func (f *fixedTakeProfit) Type() string { return TakeFixed }

func (f *fixedTakeProfit) CalculateTakeProfit(price, rsi float64) float64 {
	target := f.cfg.EntryPrice * (1 + f.targetPct(defaultTakeProfitPct))
	if f.cfg.MaxProfitAmount > 0 && f.cfg.PositionSize > 0 {
		byAmount := f.cfg.EntryPrice + f.cfg.MaxProfitAmount/f.cfg.PositionSize
		target = math.Min(target, byAmount)
	}
	f.currentTarget = target
	return target
}

func (f *fixedTakeProfit) ShouldClose(price, rsi float64) (bool, string, float64) {
	if f.Remaining() <= 0 {
		return false, "", 0
	}
	target := f.CalculateTakeProfit(price, rsi)

	if hit, reason := f.maxProfitBreached(price); hit {
		return true, reason, f.close(f.Remaining())
	}
	if price >= target {
		reason := fmt.Sprintf("fixed take profit triggered: price %.4f >= target %.4f", price, target)
		return true, reason, f.close(f.Remaining())
	}
	return false, "", 0
}

// dynamicTakeProfit activates on RSI overbought or on 5 % unrealized
// profit; once active the target trails the highest price by the configured
// pullback percent. An RSI breach also closes outright, independent of the
// trailing line.
type dynamicTakeProfit struct {
	takeProfitState
}

func (d *dynamicTakeProfit) Type() string { return TakeDynamic }

func (d *dynamicTakeProfit) CalculateTakeProfit(price, rsi float64) float64 {
	d.highestPrice = math.Max(d.highestPrice, price)

	if rsi > 0 && rsi > d.cfg.RSIOverbought {
		d.active = true
	}
	if profitPercent(price, d.cfg.EntryPrice) > 0.05 {
		d.active = true
	}

	if d.active && d.cfg.TrailingPercent > 0 {
		d.currentTarget = d.highestPrice * (1 - d.cfg.TrailingPercent)
		return d.currentTarget
	}

	d.currentTarget = d.cfg.EntryPrice * (1 + d.targetPct(dynamicInactivePct))
	return d.currentTarget
}

func (d *dynamicTakeProfit) ShouldClose(price, rsi float64) (bool, string, float64) {
	if d.Remaining() <= 0 {
		return false, "", 0
	}
	target := d.CalculateTakeProfit(price, rsi)

	if hit, reason := d.maxProfitBreached(price); hit {
		return true, reason, d.close(d.Remaining())
	}

	if d.active && d.cfg.TrailingPercent > 0 {
		if price <= target {
			reason := fmt.Sprintf("trailing take profit triggered: price %.4f <= target %.4f", price, target)
			return true, reason, d.close(d.Remaining())
		}
	} else if price >= target {
		reason := fmt.Sprintf("fixed take profit triggered: price %.4f >= target %.4f", price, target)
		return true, reason, d.close(d.Remaining())
	}

	// RSI overbought closes outright even when the trailing line holds.
	if rsi > 0 && rsi > d.cfg.RSIOverbought {
		return true, fmt.Sprintf("RSI overbought triggered take profit: RSI %.2f", rsi), d.close(d.Remaining())
	}
	return false, "", 0
}

// ladderTakeProfit books a partial close at each profit tier; once a tier
// has been consumed, price pulling back to that tier's target line closes
// the full remainder.
type ladderTakeProfit struct {
	takeProfitState
}

func (l *ladderTakeProfit) Type() string { return TakeLadder }

func (l *ladderTakeProfit) CalculateTakeProfit(price, rsi float64) float64 {
	profit := profitPercent(price, l.cfg.EntryPrice)

	// First unconsumed tier whose threshold is met.
	for i, step := range l.cfg.LadderSteps {
		if i >= l.ladderStep && profit >= step.ProfitPercent {
			l.currentTarget = l.cfg.EntryPrice * (1 + step.TargetPercent)
			return l.currentTarget
		}
	}

	l.currentTarget = l.cfg.EntryPrice * (1 + l.targetPct(defaultTakeProfitPct))
	return l.currentTarget
}

func (l *ladderTakeProfit) ShouldClose(price, rsi float64) (bool, string, float64) {
	if l.Remaining() <= 0 {
		return false, "", 0
	}
	profit := profitPercent(price, l.cfg.EntryPrice)

	if hit, reason := l.maxProfitBreached(price); hit {
		return true, reason, l.close(l.Remaining())
	}

	// Consume the next tier whose threshold has been reached, one per tick.
	for i, step := range l.cfg.LadderSteps {
		if l.ladderStep == i && profit >= step.ProfitPercent {
			amount := l.close(l.cfg.PositionSize * step.ClosePercent)
			l.ladderStep++
			reason := fmt.Sprintf("ladder tier %d take profit: profit %.2f%%, closing %.4f",
				i+1, profit*100, amount)
			return true, reason, amount
		}
	}

	// Pullback through the last consumed tier's target flattens the rest.
	if l.ladderStep > 0 && l.ladderStep <= len(l.cfg.LadderSteps) {
		floor := l.cfg.EntryPrice * (1 + l.cfg.LadderSteps[l.ladderStep-1].TargetPercent)
		if price <= floor {
			amount := l.close(l.Remaining())
			if amount > 0 {
				reason := fmt.Sprintf("ladder pullback: price %.4f <= tier %d target %.4f",
					price, l.ladderStep, floor)
				return true, reason, amount
			}
		}
	}
	return false, "", 0
}

// partialTakeProfit is purely profit-percent gated: each newly reached tier
// closes its configured fraction of the original position.
type partialTakeProfit struct {
	takeProfitState
}

func (p *partialTakeProfit) Type() string { return TakePartial }

func (p *partialTakeProfit) CalculateTakeProfit(price, rsi float64) float64 {
	profit := profitPercent(price, p.cfg.EntryPrice)

	// A reachable unconsumed tier means the current price is the trigger.
	for i, step := range p.cfg.PartialSteps {
		if p.partialStep <= i && profit >= step.ProfitPercent {
			p.currentTarget = price
			return price
		}
	}

	p.currentTarget = p.cfg.EntryPrice * (1 + p.targetPct(dynamicInactivePct))
	return p.currentTarget
}

func (p *partialTakeProfit) ShouldClose(price, rsi float64) (bool, string, float64) {
	if p.Remaining() <= 0 {
		return false, "", 0
	}
	profit := profitPercent(price, p.cfg.EntryPrice)

	if hit, reason := p.maxProfitBreached(price); hit {
		return true, reason, p.close(p.Remaining())
	}

	for i, step := range p.cfg.PartialSteps {
		if p.partialStep <= i && profit >= step.ProfitPercent {
			amount := p.close(p.cfg.PositionSize * step.ClosePercent)
			p.partialStep = i + 1

			status := fmt.Sprintf("remaining %.4f", p.Remaining())
			if p.Remaining() == 0 {
				status = "fully closed"
			}
			reason := fmt.Sprintf("partial take profit %d: profit %.2f%%, closing %.4f, %s",
				p.partialStep, profit*100, amount, status)
			return true, reason, amount
		}
	}
	return false, "", 0
}
