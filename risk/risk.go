// Package risk sequences the per-concern strategies into one evaluation
// tick per monitored position and carries the account-level limit manager.
package risk

import (
	"math"
	"time"

	"github.com/evdnx/goti"
	"github.com/evdnx/gorisk/config"
	"github.com/evdnx/gorisk/logger"
	"github.com/evdnx/gorisk/metrics"
	"github.com/evdnx/gorisk/strategy"
	"github.com/evdnx/gorisk/types"
)

// SuiteFactory builds the optional indicator suite an Engine uses to fill
// in ATR/RSI when a tick arrives without them.
type SuiteFactory func() (*goti.IndicatorSuite, error)

// CheckInput is one evaluation tick for a monitored position. ATR and RSI
// are optional (<= 0 = unknown); when absent and the Engine owns an
// indicator suite, the suite's current values are used instead. Account is
// forwarded to the alert instances when present.
type CheckInput struct {
	Price   float64
	ATR     float64
	RSI     float64
	Account *strategy.Snapshot
}

// Engine owns one position's long-lived strategy instances and runs the
// comprehensive risk evaluation: sizer, then stop-loss, then take-profit,
// then the alert set. It never short-circuits; if the stop-loss fires, the
// caller decides whether the take-profit verdict still matters.
//
// An Engine belongs to a single position and a single evaluator goroutine.
type Engine struct {
	log    logger.Logger
	symbol string
	suite  *goti.IndicatorSuite

	position   *config.PositionConfig
	stopLoss   strategy.StopLossStrategy
	takeProfit strategy.TakeProfitStrategy
	alerts     *strategy.AlertManager
}

// NewEngine wires the profile's configured strategies into a fresh Engine.
// suiteFactory may be nil when the host always supplies ATR/RSI itself.
func NewEngine(symbol string, prof *config.Profile, suiteFactory SuiteFactory, log logger.Logger) (*Engine, error) {
	e := &Engine{
		log:    log,
		symbol: symbol,
		alerts: strategy.NewAlertManager(),
	}

	if suiteFactory != nil {
		suite, err := suiteFactory()
		if err != nil {
			return nil, err
		}
		e.suite = suite
	}

	if prof == nil {
		return e, nil
	}

	e.position = prof.Position

	if prof.StopLoss != nil {
		sl, err := strategy.NewStopLoss(*prof.StopLoss)
		if err != nil {
			return nil, err
		}
		e.stopLoss = sl
	}
	if prof.TakeProfit != nil {
		tp, err := strategy.NewTakeProfit(*prof.TakeProfit)
		if err != nil {
			return nil, err
		}
		e.takeProfit = tp
	}
	for _, ac := range prof.Alerts {
		a, err := strategy.NewAlert(ac)
		if err != nil {
			return nil, err
		}
		e.alerts.Add(ac.AlertType, a)
	}

	return e, nil
}

// AddAlert registers an extra named alert instance.
func (e *Engine) AddAlert(name string, a strategy.AlertStrategy) {
	e.alerts.Add(name, a)
}

// AlertHistory returns the recorded alert history per instance.
func (e *Engine) AlertHistory(limit int) map[string][]types.Alert {
	return e.alerts.History(limit)
}

// ProcessBar feeds one OHLCV bar into the indicator suite. A no-op without
// a suite.
func (e *Engine) ProcessBar(high, low, close, volume float64) {
	if e.suite == nil {
		return
	}
	if err := e.suite.Add(high, low, close, volume); err != nil {
		e.log.Warn("suite_add_error", logger.Err(err))
	}
}

// suiteATR reads the most recent ATSO value as an ATR proxy.
func (e *Engine) suiteATR() float64 {
	if e.suite == nil {
		return 0
	}
	vals := e.suite.GetATSO().GetATSOValues()
	if len(vals) == 0 {
		return 0
	}
	return math.Abs(vals[len(vals)-1])
}

func (e *Engine) suiteRSI() float64 {
	if e.suite == nil {
		return 0
	}
	v, err := e.suite.GetRSI().Calculate()
	if err != nil {
		return 0
	}
	return v
}

// RunComprehensiveCheck runs every configured strategy against one tick and
// aggregates the verdicts. Absent configs leave their result fields nil.
func (e *Engine) RunComprehensiveCheck(in CheckInput) (types.RiskCheck, error) {
	out := types.RiskCheck{Timestamp: time.Now()}

	atr := in.ATR
	if atr <= 0 {
		atr = e.suiteATR()
	}
	rsi := in.RSI
	if rsi <= 0 {
		rsi = e.suiteRSI()
	}

	if e.position != nil {
		dec, err := strategy.CalculatePositionSize(*e.position)
		if err != nil {
			return out, err
		}
		out.Sizing = &dec
		metrics.ChecksRun.WithLabelValues("position").Inc()
		metrics.RecommendedSize.Set(dec.Size)
	}

	if e.stopLoss != nil {
		close, reason := e.stopLoss.ShouldClose(in.Price, atr)
		out.StopLoss = &types.StopLossDecision{
			Close:    close,
			Reason:   reason,
			StopLoss: e.stopLoss.CurrentStopLoss(),
		}
		metrics.ChecksRun.WithLabelValues("stop_loss").Inc()
		if close {
			metrics.ClosesSignaled.WithLabelValues("stop_loss", e.stopLoss.Type()).Inc()
			e.log.Info("stop_loss_triggered",
				logger.String("symbol", e.symbol),
				logger.String("strategy", e.stopLoss.Type()),
				logger.Float64("price", in.Price),
				logger.String("reason", reason),
			)
		}
	}

	if e.takeProfit != nil {
		close, reason, amount := e.takeProfit.ShouldClose(in.Price, rsi)
		out.TakeProfit = &types.TakeProfitDecision{
			Close:  close,
			Reason: reason,
			Amount: amount,
		}
		metrics.ChecksRun.WithLabelValues("take_profit").Inc()
		if close {
			metrics.ClosesSignaled.WithLabelValues("take_profit", e.takeProfit.Type()).Inc()
			e.log.Info("take_profit_triggered",
				logger.String("symbol", e.symbol),
				logger.String("strategy", e.takeProfit.Type()),
				logger.Float64("price", in.Price),
				logger.Float64("amount", amount),
				logger.String("reason", reason),
			)
		}
	}

	results := e.alerts.CheckAll(in.Account)
	metrics.ChecksRun.WithLabelValues("alert").Inc()
	for _, r := range results {
		metrics.AlertsFired.WithLabelValues(r.Type).Inc()
		e.log.Warn("risk_alert",
			logger.String("symbol", e.symbol),
			logger.String("type", r.Type),
			logger.String("message", r.Message),
		)
	}
	out.Alerts = results

	return out, nil
}
