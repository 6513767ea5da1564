package types

import "time"

// SizingDecision is the result of a position-size calculation.
type SizingDecision struct {
	Size  float64 // recommended size in units
	Value float64 // size * entry price
}

// StopLossDecision is the per-tick verdict of a stop-loss strategy.
type StopLossDecision struct {
	Close    bool
	Reason   string
	StopLoss float64 // current stop-loss line
}

// TakeProfitDecision is the per-tick verdict of a take-profit strategy.
// Amount is the quantity to close; partial strategies may return less than
// the remaining position.
type TakeProfitDecision struct {
	Close  bool
	Reason string
	Amount float64
}

// Alert is one recorded alert occurrence.
type Alert struct {
	Timestamp time.Time
	Message   string
	Details   map[string]any
}

// AlertResult is the outcome of a single alert check, tagged with the name
// of the evaluator that produced it.
type AlertResult struct {
	Type    string
	Message string
	Details map[string]any
}

// Position is a portfolio snapshot entry used by the portfolio alert and
// the account risk manager.
type Position struct {
	Symbol string
	Value  float64
}

// RiskCheck aggregates one comprehensive evaluation tick. Pointer fields are
// nil when the corresponding strategy was not configured for the tick.
type RiskCheck struct {
	Timestamp  time.Time
	Sizing     *SizingDecision
	StopLoss   *StopLossDecision
	TakeProfit *TakeProfitDecision
	Alerts     []AlertResult
}
