package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/evdnx/gorisk/logger"
)

// Level is a coarse account risk grade.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Limits are the account-wide guard rails the Manager enforces.
type Limits struct {
	MaxPosition    float64 // max total position value
	MaxDailyLoss   float64
	MaxTotalLoss   float64
	MaxOrders      int // per day
	MaxSingleOrder float64

	StopLossThreshold   float64 // flat stop for watched positions
	TakeProfitThreshold float64
	AutoStop            bool
}

// DefaultLimits mirrors the conservative defaults a fresh account gets.
func DefaultLimits() Limits {
	return Limits{
		MaxPosition:         10000,
		MaxDailyLoss:        1000,
		MaxTotalLoss:        5000,
		MaxOrders:           50,
		MaxSingleOrder:      1000,
		StopLossThreshold:   0.05,
		TakeProfitThreshold: 0.10,
		AutoStop:            true,
	}
}

// TradeRecord is one executed trade the Manager accounts for.
type TradeRecord struct {
	Timestamp time.Time
	Symbol    string
	Side      string
	Price     float64
	Amount    float64
	PnL       float64
}

// Report is a point-in-time snapshot of the Manager's accounting.
type Report struct {
	Timestamp       time.Time
	CurrentPosition float64
	MaxPosition     float64
	PositionUsage   float64
	DailyPnL        float64
	TotalPnL        float64
	OrderCount      int
	MaxOrders       int
	DailyTrades     int
}

// Manager tracks running position value, PnL and order counts against the
// configured limits. Daily counters reset on the first touch of a new day.
// A Manager is owned by one account evaluator; no internal locking.
type Manager struct {
	limits Limits
	log    logger.Logger

	currentPosition float64
	dailyPnL        float64
	totalPnL        float64
	orderCount      int
	dailyTrades     []TradeRecord
	lastReset       time.Time

	now func() time.Time
}

// NewManager creates a Manager with the supplied limits.
func NewManager(limits Limits, log logger.Logger) *Manager {
	m := &Manager{limits: limits, log: log, now: time.Now}
	m.lastReset = m.now()
	return m
}

// resetDaily clears the per-day counters when the date has rolled over.
func (m *Manager) resetDaily() {
	today := m.now()
	if today.YearDay() == m.lastReset.YearDay() && today.Year() == m.lastReset.Year() {
		return
	}
	m.dailyPnL = 0
	m.dailyTrades = nil
	m.orderCount = 0
	m.lastReset = today
	m.log.Info("daily_limits_reset")
}

// CheckPositionLimit verifies the limit with the candidate value added.
func (m *Manager) CheckPositionLimit(positionValue float64) (bool, string) {
	next := m.currentPosition + positionValue
	if next > m.limits.MaxPosition {
		return false, fmt.Sprintf("max position exceeded: %.2f > %.2f", next, m.limits.MaxPosition)
	}
	return true, ""
}

func (m *Manager) CheckDailyLossLimit() (bool, string) {
	m.resetDaily()
	if m.dailyPnL < -m.limits.MaxDailyLoss {
		return false, fmt.Sprintf("max daily loss exceeded: %.2f < -%.2f", m.dailyPnL, m.limits.MaxDailyLoss)
	}
	return true, ""
}

func (m *Manager) CheckTotalLossLimit() (bool, string) {
	if m.totalPnL < -m.limits.MaxTotalLoss {
		return false, fmt.Sprintf("max total loss exceeded: %.2f < -%.2f", m.totalPnL, m.limits.MaxTotalLoss)
	}
	return true, ""
}

func (m *Manager) CheckOrderLimit() (bool, string) {
	m.resetDaily()
	if m.orderCount >= m.limits.MaxOrders {
		return false, fmt.Sprintf("max order count exceeded: %d >= %d", m.orderCount, m.limits.MaxOrders)
	}
	return true, ""
}

func (m *Manager) CheckSingleOrderLimit(orderValue float64) (bool, string) {
	if orderValue > m.limits.MaxSingleOrder {
		return false, fmt.Sprintf("max single order exceeded: %.2f > %.2f", orderValue, m.limits.MaxSingleOrder)
	}
	return true, ""
}

// CheckAll runs every limit and collects the failures.
func (m *Manager) CheckAll(positionValue, orderValue float64) (bool, []string) {
	var errs []string
	checks := []func() (bool, string){
		func() (bool, string) { return m.CheckPositionLimit(positionValue) },
		m.CheckDailyLossLimit,
		m.CheckTotalLossLimit,
		m.CheckOrderLimit,
		func() (bool, string) { return m.CheckSingleOrderLimit(orderValue) },
	}
	for _, check := range checks {
		if ok, reason := check(); !ok {
			errs = append(errs, reason)
		}
	}
	return len(errs) == 0, errs
}

// ShouldStopLoss applies the flat stop threshold to a held position.
func (m *Manager) ShouldStopLoss(currentPrice, entryPrice float64) bool {
	if entryPrice <= 0 {
		return false
	}
	return (entryPrice-currentPrice)/entryPrice >= m.limits.StopLossThreshold
}

// ShouldTakeProfit applies the flat profit threshold to a held position.
func (m *Manager) ShouldTakeProfit(currentPrice, entryPrice float64) bool {
	if entryPrice <= 0 {
		return false
	}
	return (currentPrice-entryPrice)/entryPrice >= m.limits.TakeProfitThreshold
}

// EvaluateRiskLevel scores position usage (30), loss (40) and volatility
// (30, 10 % volatility = full marks) into a coarse grade.
func (m *Manager) EvaluateRiskLevel(positionValue, unrealizedPnL, volatility float64) Level {
	score := 0.0

	if m.limits.MaxPosition > 0 {
		score += positionValue / m.limits.MaxPosition * 30
	}
	if m.limits.MaxDailyLoss > 0 {
		score += math.Min(math.Abs(unrealizedPnL)/m.limits.MaxDailyLoss, 1) * 40
	}
	score += math.Min(volatility/0.1, 1) * 30

	switch {
	case score < 30:
		return LevelLow
	case score < 60:
		return LevelMedium
	case score < 85:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// UpdatePosition books a position change at the given price.
func (m *Manager) UpdatePosition(amount, price float64) {
	value := amount * price
	m.currentPosition += value
	m.log.Info("position_updated",
		logger.Float64("current_position", m.currentPosition),
		logger.Float64("delta", value),
	)
}

// UpdatePnL books realized PnL into the daily and total counters.
func (m *Manager) UpdatePnL(pnl float64) {
	m.dailyPnL += pnl
	m.totalPnL += pnl
	m.log.Info("pnl_updated",
		logger.Float64("daily_pnl", m.dailyPnL),
		logger.Float64("total_pnl", m.totalPnL),
	)
}

// RecordTrade appends to the daily trade log and bumps the order counter.
func (m *Manager) RecordTrade(t TradeRecord) {
	if t.Timestamp.IsZero() {
		t.Timestamp = m.now()
	}
	m.dailyTrades = append(m.dailyTrades, t)
	m.orderCount++
}

// Report snapshots the current accounting state.
func (m *Manager) Report() Report {
	usage := 0.0
	if m.limits.MaxPosition > 0 {
		usage = m.currentPosition / m.limits.MaxPosition
	}
	return Report{
		Timestamp:       m.now(),
		CurrentPosition: m.currentPosition,
		MaxPosition:     m.limits.MaxPosition,
		PositionUsage:   usage,
		DailyPnL:        m.dailyPnL,
		TotalPnL:        m.totalPnL,
		OrderCount:      m.orderCount,
		MaxOrders:       m.limits.MaxOrders,
		DailyTrades:     len(m.dailyTrades),
	}
}

// PreTradeCheck combines the limit verdicts with the risk grade into a
// pass/fail plus a recommendation for the caller.
func (m *Manager) PreTradeCheck(positionValue, orderValue float64) (bool, []string, string) {
	passed, errs := m.CheckAll(positionValue, orderValue)
	if !passed {
		return false, errs, "pause trading or reduce the position size"
	}

	level := m.EvaluateRiskLevel(m.currentPosition+positionValue, m.dailyPnL, 0)
	switch level {
	case LevelHigh:
		return true, nil, "reduce trade frequency or per-trade amount"
	case LevelCritical:
		return false, []string{fmt.Sprintf("risk level critical: %s", level)}, "stop trading immediately"
	default:
		return true, nil, "ok to trade"
	}
}

// SafePositionSize caps a risk-derived size by the remaining position
// headroom and the single-order limit.
func (m *Manager) SafePositionSize(balance, entryPrice, stopLossPrice, maxRiskPercent float64) float64 {
	size := SizeByRisk(balance, maxRiskPercent, entryPrice, stopLossPrice)
	if size == 0 {
		return 0
	}

	value := size * entryPrice
	if ok, _ := m.CheckPositionLimit(value); !ok {
		headroom := m.limits.MaxPosition - m.currentPosition
		if headroom <= 0 {
			m.log.Warn("position_limit_reached")
			return 0
		}
		size = math.Min(size, headroom/entryPrice)
		value = size * entryPrice
	}

	if value > m.limits.MaxSingleOrder {
		size = m.limits.MaxSingleOrder / entryPrice
	}
	return size
}

// SizeByRisk converts an account risk budget into a position size from the
// distance to the stop, capped at 100 % of the balance.
func SizeByRisk(balance, riskPercent, entryPrice, stopLossPrice float64) float64 {
	if entryPrice <= 0 || stopLossPrice <= 0 {
		return 0
	}

	riskAmount := balance * riskPercent
	lossPerUnit := math.Abs(entryPrice - stopLossPrice)
	if lossPerUnit <= 0 {
		return 0
	}

	size := riskAmount / lossPerUnit
	if size*entryPrice > balance {
		size = balance / entryPrice
	}
	return size
}

// RewardRatio is reward over risk for an entry/stop/target triple; zero
// when the inputs cannot produce a meaningful ratio.
func RewardRatio(entryPrice, stopLossPrice, takeProfitPrice float64) float64 {
	if entryPrice <= 0 || stopLossPrice <= 0 {
		return 0
	}
	riskAmt := math.Abs(entryPrice - stopLossPrice)
	if riskAmt == 0 {
		return 0
	}
	return math.Abs(takeProfitPrice-entryPrice) / riskAmt
}

// WatchAction is one triggered stop/take action from the watchlist.
type WatchAction struct {
	Symbol        string
	Action        string // stop_loss or take_profit
	Reason        string
	CurrentPrice  float64
	EntryPrice    float64
	ChangePercent float64
}

type watchEntry struct {
	entryPrice float64
	amount     float64
	stopLoss   float64
	takeProfit float64
	createdAt  time.Time
}

// PositionWatch keeps flat stop/take levels per symbol, computed once at
// registration, and checks a whole price map in one pass.
type PositionWatch struct {
	stopLossPercent   float64
	takeProfitPercent float64
	positions         map[string]watchEntry
	log               logger.Logger
}

// NewPositionWatch creates a watchlist with flat stop/take percents.
func NewPositionWatch(stopLossPercent, takeProfitPercent float64, log logger.Logger) *PositionWatch {
	return &PositionWatch{
		stopLossPercent:   stopLossPercent,
		takeProfitPercent: takeProfitPercent,
		positions:         make(map[string]watchEntry),
		log:               log,
	}
}

// Add registers a position; its stop/take levels are fixed at entry.
func (w *PositionWatch) Add(symbol string, entryPrice, amount float64) {
	entry := watchEntry{
		entryPrice: entryPrice,
		amount:     amount,
		stopLoss:   entryPrice * (1 - w.stopLossPercent),
		takeProfit: entryPrice * (1 + w.takeProfitPercent),
		createdAt:  time.Now(),
	}
	w.positions[symbol] = entry
	w.log.Info("position_watched",
		logger.String("symbol", symbol),
		logger.Float64("entry", entryPrice),
		logger.Float64("stop_loss", entry.stopLoss),
		logger.Float64("take_profit", entry.takeProfit),
	)
}

// Remove drops a position from the watchlist.
func (w *PositionWatch) Remove(symbol string) {
	delete(w.positions, symbol)
}

// Levels returns the stop/take levels for a watched symbol.
func (w *PositionWatch) Levels(symbol string) (stopLoss, takeProfit float64, ok bool) {
	entry, ok := w.positions[symbol]
	if !ok {
		return 0, 0, false
	}
	return entry.stopLoss, entry.takeProfit, true
}

// Check compares every watched position against the supplied price map and
// returns the triggered actions. Symbols without a price are skipped.
func (w *PositionWatch) Check(prices map[string]float64) []WatchAction {
	var actions []WatchAction
	for symbol, pos := range w.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}

		switch {
		case price <= pos.stopLoss:
			actions = append(actions, WatchAction{
				Symbol:        symbol,
				Action:        "stop_loss",
				Reason:        fmt.Sprintf("price hit stop level: %.4f <= %.4f", price, pos.stopLoss),
				CurrentPrice:  price,
				EntryPrice:    pos.entryPrice,
				ChangePercent: (pos.entryPrice - price) / pos.entryPrice,
			})
		case price >= pos.takeProfit:
			actions = append(actions, WatchAction{
				Symbol:        symbol,
				Action:        "take_profit",
				Reason:        fmt.Sprintf("price hit profit level: %.4f >= %.4f", price, pos.takeProfit),
				CurrentPrice:  price,
				EntryPrice:    pos.entryPrice,
				ChangePercent: (price - pos.entryPrice) / pos.entryPrice,
			})
		}
	}
	return actions
}
