// Package strategy implements the pluggable position-risk strategies: the
// position sizers, the stop-loss and take-profit state machines and the
// alert evaluators. Each concern selects its variant through a string
// selector looked up in a closed registry; an unknown selector yields a
// *ConfigurationError, never a panic.
//
// Optional numeric inputs (ATR, RSI, volatility) are passed as plain
// float64 values where <= 0 means "not supplied" and triggers the
// documented formula fallback. All quantities the engine cares about are
// strictly positive when real.
package strategy

import "fmt"

// ConfigurationError reports an unrecognized strategy-variant selector.
// It is fatal for the calling evaluation and never retried.
type ConfigurationError struct {
	Concern  string // position, stop_loss, take_profit, alert
	Selector string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown %s strategy type %q", e.Concern, e.Selector)
}

// profitPercent returns the unrealized profit of a long position as a
// fraction of the entry price (0.05 = 5 %).
func profitPercent(price, entry float64) float64 {
	if entry == 0 {
		return 0
	}
	return (price - entry) / entry
}
