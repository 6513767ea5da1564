package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/evdnx/gorisk/config"
	"github.com/evdnx/gorisk/types"
)

// Alert selectors.
const (
	AlertThreshold  = "threshold"
	AlertTrend      = "trend"
	AlertVolatility = "volatility"
	AlertDrawdown   = "drawdown"
	AlertPortfolio  = "portfolio"
)

// alertHistoryCap bounds the per-instance alert history (FIFO eviction).
const alertHistoryCap = 100

// AlertStrategy evaluates one risk condition over the instance's current
// account/market snapshot. The condition checks themselves are stateless;
// the instance adds the cooldown and a bounded history of past alerts.
type AlertStrategy interface {
	// CheckAlert evaluates the condition. It returns false without
	// evaluating while the instance is in its cooldown window; a firing
	// check records the alert and starts a new cooldown.
	CheckAlert() (bool, string, map[string]any)
	// Observe refreshes the observable account/market fields ahead of the
	// next check. Thresholds and instance state are untouched.
	Observe(snap Snapshot)
	// History returns up to limit past alerts, most recent last.
	History(limit int) []types.Alert
	// InCooldown reports whether the cooldown window is still open.
	InCooldown() bool
	Type() string
}

// Snapshot carries the per-tick facts an alert re-evaluates. Zero-valued
// balance/price fields and nil slices leave the previous observation in
// place; the PnL fields always overwrite (zero is a legitimate PnL).
type Snapshot struct {
	AccountBalance     float64
	CurrentPrice       float64
	PricesHistory      []float64
	TotalPositionValue float64
	Positions          []types.Position
	UnrealizedPnL      float64
	RealizedPnL        float64
}

var alertFactories = map[string]func(*alertBase) AlertStrategy{
	AlertThreshold:  func(b *alertBase) AlertStrategy { return &thresholdAlert{alertBase: b} },
	AlertTrend:      func(b *alertBase) AlertStrategy { return &trendAlert{alertBase: b} },
	AlertVolatility: func(b *alertBase) AlertStrategy { return &volatilityAlert{alertBase: b} },
	AlertDrawdown:   func(b *alertBase) AlertStrategy { return newDrawdownAlert(b) },
	AlertPortfolio:  func(b *alertBase) AlertStrategy { return &portfolioAlert{alertBase: b} },
}

// AlertStrategies lists the known alert selectors.
func AlertStrategies() []string {
	return []string{AlertThreshold, AlertTrend, AlertVolatility, AlertDrawdown, AlertPortfolio}
}

// NewAlert builds an alert instance. The instance owns its cooldown and
// history; the account/market fields of the config are refreshed through
// Observe between checks.
func NewAlert(cfg config.AlertConfig) (AlertStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, ok := alertFactories[cfg.AlertType]
	if !ok {
		return nil, &ConfigurationError{Concern: "alert", Selector: cfg.AlertType}
	}
	return factory(&alertBase{cfg: cfg.WithDefaults(), now: time.Now}), nil
}

type alertBase struct {
	cfg       config.AlertConfig
	history   []types.Alert
	lastAlert time.Time
	now       func() time.Time // injectable for cooldown tests
}

// Observe refreshes the observable account/market fields. Zero or negative
// scalars and nil slices mean "no new observation" and keep the previous
// value; the PnL fields always overwrite since zero is a real PnL reading.
func (b *alertBase) Observe(snap Snapshot) {
	if snap.AccountBalance > 0 {
		b.cfg.AccountBalance = snap.AccountBalance
	}
	if snap.CurrentPrice > 0 {
		b.cfg.CurrentPrice = snap.CurrentPrice
	}
	if snap.PricesHistory != nil {
		b.cfg.PricesHistory = snap.PricesHistory
	}
	if snap.TotalPositionValue > 0 {
		b.cfg.TotalPositionValue = snap.TotalPositionValue
	}
	if snap.Positions != nil {
		b.cfg.Positions = snap.Positions
	}
	b.cfg.UnrealizedPnL = snap.UnrealizedPnL
	b.cfg.RealizedPnL = snap.RealizedPnL
}

func (b *alertBase) InCooldown() bool {
	if b.lastAlert.IsZero() {
		return false
	}
	return b.now().Sub(b.lastAlert) < time.Duration(b.cfg.CoolingPeriod)*time.Second
}

func (b *alertBase) History(limit int) []types.Alert {
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]types.Alert, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}

// record appends to the bounded history and restarts the cooldown window.
func (b *alertBase) record(message string, details map[string]any) {
	b.history = append(b.history, types.Alert{
		Timestamp: b.now(),
		Message:   message,
		Details:   details,
	})
	if len(b.history) > alertHistoryCap {
		b.history = b.history[len(b.history)-alertHistoryCap:]
	}
	b.lastAlert = b.now()
}

// finish joins the collected condition messages into the alert verdict and
// records it when anything fired.
func (b *alertBase) finish(alerts []string, details map[string]any) (bool, string, map[string]any) {
	if len(alerts) == 0 {
		return false, "", nil
	}
	message := strings.Join(alerts, "; ")
	b.record(message, details)
	return true, message, details
}

// thresholdAlert checks balance, PnL and position value against static
// thresholds; any subset may fire, combined into one message.
type thresholdAlert struct {
	*alertBase
}

func (a *thresholdAlert) Type() string { return AlertThreshold }

func (a *thresholdAlert) CheckAlert() (bool, string, map[string]any) {
	if a.InCooldown() {
		return false, "", nil
	}

	var alerts []string
	details := map[string]any{}

	if a.cfg.BalanceThreshold > 0 && a.cfg.AccountBalance <= a.cfg.BalanceThreshold {
		alerts = append(alerts, fmt.Sprintf("balance below threshold: %.2f <= %.2f",
			a.cfg.AccountBalance, a.cfg.BalanceThreshold))
		details["balance_alert"] = map[string]any{
			"current_balance": a.cfg.AccountBalance,
			"threshold":       a.cfg.BalanceThreshold,
			"diff":            a.cfg.AccountBalance - a.cfg.BalanceThreshold,
		}
	}

	if a.cfg.PnLThreshold != 0 {
		pnl := a.cfg.UnrealizedPnL
		if pnl == 0 {
			pnl = a.cfg.RealizedPnL
		}
		if math.Abs(pnl) >= math.Abs(a.cfg.PnLThreshold) {
			kind := "loss"
			if pnl > 0 {
				kind = "profit"
			}
			alerts = append(alerts, fmt.Sprintf("%s beyond threshold: %.2f >= %.2f",
				kind, pnl, a.cfg.PnLThreshold))
			details["pnl_alert"] = map[string]any{
				"pnl":       pnl,
				"threshold": a.cfg.PnLThreshold,
				"type":      kind,
			}
		}
	}

	if a.cfg.PositionThreshold > 0 && a.cfg.TotalPositionValue >= a.cfg.PositionThreshold {
		pos := map[string]any{
			"total_position": a.cfg.TotalPositionValue,
			"threshold":      a.cfg.PositionThreshold,
		}
		if a.cfg.AccountBalance > 0 {
			pos["ratio"] = a.cfg.TotalPositionValue / a.cfg.AccountBalance
		}
		alerts = append(alerts, fmt.Sprintf("position value beyond threshold: %.2f >= %.2f",
			a.cfg.TotalPositionValue, a.cfg.PositionThreshold))
		details["position_alert"] = pos
	}

	return a.finish(alerts, details)
}

// trendAlert fits an ordinary-least-squares line through the trailing
// window and compares both the window percent change and the slope against
// the trend threshold.
type trendAlert struct {
	*alertBase
}

func (a *trendAlert) Type() string { return AlertTrend }

func (a *trendAlert) CheckAlert() (bool, string, map[string]any) {
	if a.InCooldown() {
		return false, "", nil
	}
	if len(a.cfg.PricesHistory) < a.cfg.TrendPeriod {
		return false, "", nil
	}

	prices := a.cfg.PricesHistory[len(a.cfg.PricesHistory)-a.cfg.TrendPeriod:]
	slope, ok := olsSlope(prices)
	if !ok {
		return false, "", nil
	}

	current := a.cfg.CurrentPrice
	if current <= 0 {
		current = prices[len(prices)-1]
	}
	change := 0.0
	if prices[0] != 0 {
		change = (current - prices[0]) / prices[0]
	}

	var alerts []string
	details := map[string]any{
		"slope":         slope,
		"price_change":  change,
		"current_price": current,
		"start_price":   prices[0],
	}

	if math.Abs(change) >= a.cfg.TrendThreshold {
		direction := "down"
		if change > 0 {
			direction = "up"
		}
		alerts = append(alerts, fmt.Sprintf("price trending %s beyond threshold: %.2f%% >= %.2f%%",
			direction, math.Abs(change)*100, a.cfg.TrendThreshold*100))
	}

	if math.Abs(slope) > a.cfg.TrendThreshold*10 {
		direction := "decline"
		if slope > 0 {
			direction = "rally"
		}
		alerts = append(alerts, fmt.Sprintf("accelerating %s: slope %.4f", direction, slope))
	}

	return a.finish(alerts, details)
}

// olsSlope returns the least-squares slope of prices against their index.
func olsSlope(prices []float64) (float64, bool) {
	n := float64(len(prices))
	if n < 2 {
		return 0, false
	}

	xMean := (n - 1) / 2
	yMean := 0.0
	for _, p := range prices {
		yMean += p
	}
	yMean /= n

	num, den := 0.0, 0.0
	for i, p := range prices {
		dx := float64(i) - xMean
		num += dx * (p - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// volatilityAlert computes the sample standard deviation of the trailing
// return series and also flags a single-tick outlier beyond three sigmas.
type volatilityAlert struct {
	*alertBase
}

func (a *volatilityAlert) Type() string { return AlertVolatility }

func (a *volatilityAlert) CheckAlert() (bool, string, map[string]any) {
	if a.InCooldown() {
		return false, "", nil
	}
	if len(a.cfg.PricesHistory) < 2 {
		return false, "", nil
	}

	period := a.cfg.VolatilityPeriod
	if period > len(a.cfg.PricesHistory) {
		period = len(a.cfg.PricesHistory)
	}
	prices := a.cfg.PricesHistory[len(a.cfg.PricesHistory)-period:]

	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	if len(returns) < 2 {
		return false, "", nil
	}

	vol := stdev(returns)

	var alerts []string
	details := map[string]any{
		"volatility": vol,
		"threshold":  a.cfg.VolatilityThreshold,
		"period":     period,
	}

	if vol >= a.cfg.VolatilityThreshold {
		alerts = append(alerts, fmt.Sprintf("volatility beyond threshold: %.2f%% >= %.2f%%",
			vol*100, a.cfg.VolatilityThreshold*100))
	}

	last := returns[len(returns)-1]
	if math.Abs(last) > 3*vol {
		alerts = append(alerts, fmt.Sprintf("abnormal move detected: return %.2f%% (3 sigma: %.2f%%)",
			last*100, 3*vol*100))
		details["anomaly"] = map[string]any{
			"last_return": last,
			"threshold":   3 * vol,
		}
	}

	return a.finish(alerts, details)
}

// stdev is the sample standard deviation.
func stdev(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / (n - 1))
}

// drawdownAlert tracks the peak balance (ratchet upward only) and fires on
// the decline from peak; a second, additive message marks a severe (>= 20 %)
// drawdown.
type drawdownAlert struct {
	*alertBase
	peak float64
}

func newDrawdownAlert(b *alertBase) *drawdownAlert {
	d := &drawdownAlert{alertBase: b, peak: b.cfg.PeakBalance}
	if d.peak <= 0 {
		d.peak = b.cfg.AccountBalance
	}
	return d
}

func (a *drawdownAlert) Type() string { return AlertDrawdown }

func (a *drawdownAlert) CheckAlert() (bool, string, map[string]any) {
	if a.InCooldown() {
		return false, "", nil
	}

	current := a.cfg.AccountBalance
	drawdown := 0.0
	if a.peak != 0 {
		drawdown = (a.peak - current) / a.peak
	}

	var alerts []string
	details := map[string]any{
		"peak_balance":    a.peak,
		"current_balance": current,
		"drawdown":        drawdown,
	}

	if drawdown >= a.cfg.DrawdownThreshold {
		alerts = append(alerts, fmt.Sprintf("drawdown beyond threshold: %.2f%% >= %.2f%%",
			drawdown*100, a.cfg.DrawdownThreshold*100))
	}
	if drawdown >= 0.20 {
		alerts = append(alerts, "severe drawdown warning: drawdown beyond 20%")
	}

	if current > a.peak {
		a.peak = current
	}

	return a.finish(alerts, details)
}

// portfolioAlert checks per-position concentration, position count and the
// overall exposure ratio.
type portfolioAlert struct {
	*alertBase
}

func (a *portfolioAlert) Type() string { return AlertPortfolio }

func (a *portfolioAlert) CheckAlert() (bool, string, map[string]any) {
	if a.InCooldown() {
		return false, "", nil
	}
	if len(a.cfg.Positions) == 0 {
		return false, "", nil
	}

	total := 0.0
	for _, pos := range a.cfg.Positions {
		total += pos.Value
	}
	if total == 0 {
		return false, "", nil
	}

	var alerts []string
	var positions []map[string]any
	details := map[string]any{"total_positions": len(a.cfg.Positions)}

	for _, pos := range a.cfg.Positions {
		weight := pos.Value / total
		entry := map[string]any{
			"symbol": pos.Symbol,
			"value":  pos.Value,
			"weight": weight,
		}
		if weight >= a.cfg.ConcentrationThreshold {
			alerts = append(alerts, fmt.Sprintf("position concentration too high: %s at %.2f%% >= %.2f%%",
				pos.Symbol, weight*100, a.cfg.ConcentrationThreshold*100))
			entry["alert"] = true
		}
		positions = append(positions, entry)
	}
	details["positions"] = positions

	if len(a.cfg.Positions) > 20 {
		alerts = append(alerts, fmt.Sprintf("too many open positions: %d", len(a.cfg.Positions)))
		details["alert"] = "too_many_positions"
	}

	if a.cfg.TotalPositionValue > 0 && a.cfg.AccountBalance > 0 {
		ratio := a.cfg.TotalPositionValue / a.cfg.AccountBalance
		if ratio >= 0.9 {
			alerts = append(alerts, fmt.Sprintf("exposure too high: positions at %.2f%% of balance >= 90%%",
				ratio*100))
			details["position_ratio"] = ratio
		}
	}

	return a.finish(alerts, details)
}

// AlertManager holds a named set of alert instances and checks them in
// registration order, skipping any still in cooldown.
type AlertManager struct {
	names      []string
	strategies map[string]AlertStrategy
}

func NewAlertManager() *AlertManager {
	return &AlertManager{strategies: make(map[string]AlertStrategy)}
}

// Add registers (or replaces) a named alert strategy.
func (m *AlertManager) Add(name string, s AlertStrategy) {
	if _, exists := m.strategies[name]; !exists {
		m.names = append(m.names, name)
	}
	m.strategies[name] = s
}

// Remove unregisters a named alert strategy.
func (m *AlertManager) Remove(name string) {
	if _, exists := m.strategies[name]; !exists {
		return
	}
	delete(m.strategies, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
}

// CheckAll evaluates every registered alert, feeding each the snapshot
// first when one is supplied, and returns the alerts that fired.
func (m *AlertManager) CheckAll(snap *Snapshot) []types.AlertResult {
	var results []types.AlertResult
	for _, name := range m.names {
		s := m.strategies[name]
		if snap != nil {
			s.Observe(*snap)
		}
		if s.InCooldown() {
			continue
		}
		if fired, message, details := s.CheckAlert(); fired {
			results = append(results, types.AlertResult{
				Type:    s.Type(),
				Message: message,
				Details: details,
			})
		}
	}
	return results
}

// History returns every instance's alert history keyed by name.
func (m *AlertManager) History(limit int) map[string][]types.Alert {
	out := make(map[string][]types.Alert, len(m.strategies))
	for name, s := range m.strategies {
		out[name] = s.History(limit)
	}
	return out
}
