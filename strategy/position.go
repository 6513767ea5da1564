package strategy

import (
	"math"

	"github.com/evdnx/gorisk/config"
	"github.com/evdnx/gorisk/types"
)

// Position sizer selectors.
const (
	SizerKelly      = "kelly"
	SizerFixedRatio = "fixed_ratio"
	SizerATR        = "atr_based"
	SizerRiskParity = "risk_parity"
	SizerVolatility = "volatility"
)

// sizerFunc converts a fully-defaulted config into a raw (unclamped) size.
type sizerFunc func(cfg config.PositionConfig) float64

var sizers = map[string]sizerFunc{
	SizerKelly:      kellySize,
	SizerFixedRatio: fixedRatioSize,
	SizerATR:        atrSize,
	SizerRiskParity: riskParitySize,
	SizerVolatility: volatilitySize,
}

// PositionSizers lists the known sizer selectors.
func PositionSizers() []string {
	return []string{SizerKelly, SizerFixedRatio, SizerATR, SizerRiskParity, SizerVolatility}
}

// CalculatePositionSize runs the selected sizing formula and applies the
// common clamp. It is a pure function of the config and safe to call from
// any number of goroutines.
func CalculatePositionSize(cfg config.PositionConfig) (types.SizingDecision, error) {
	if err := cfg.Validate(); err != nil {
		return types.SizingDecision{}, err
	}
	fn, ok := sizers[cfg.StrategyType]
	if !ok {
		return types.SizingDecision{}, &ConfigurationError{Concern: "position", Selector: cfg.StrategyType}
	}

	rc := cfg.WithDefaults()
	size := applyLimits(rc, fn(rc))
	return types.SizingDecision{Size: size, Value: size * rc.EntryPrice}, nil
}

// applyLimits clamps a raw size into [min, max] where max is the tighter of
// the absolute cap and the percent-of-capital cap.
func applyLimits(cfg config.PositionConfig, size float64) float64 {
	maxSize := math.Inf(1)
	if cfg.MaxPositionSize > 0 {
		maxSize = cfg.MaxPositionSize
	}
	maxByPercent := cfg.Capital() * cfg.MaxPositionPercent / cfg.EntryPrice
	maxSize = math.Min(maxSize, maxByPercent)

	return math.Max(cfg.MinPositionSize, math.Min(maxSize, size))
}

// kellySize applies the Kelly criterion, scaled down by the configured
// Kelly fraction. Without historical win/loss stats it degrades to a
// conservative fixed percent of the balance.
func kellySize(cfg config.PositionConfig) float64 {
	if cfg.WinRate <= 0 || cfg.AvgWin <= 0 || cfg.AvgLoss == 0 {
		return cfg.AccountBalance * cfg.FixedPercent / cfg.EntryPrice
	}

	// f* = (b*p - q) / b with b the payoff ratio and q = 1 - p.
	b := cfg.AvgWin / math.Abs(cfg.AvgLoss)
	p := cfg.WinRate
	q := 1 - p

	f := (b*p - q) / b
	f *= cfg.KellyFraction
	f = math.Max(0, f)

	return cfg.AccountBalance * f / cfg.EntryPrice
}

// fixedRatioSize commits a fixed percent of capital.
func fixedRatioSize(cfg config.PositionConfig) float64 {
	return cfg.Capital() * cfg.FixedPercent / cfg.EntryPrice
}

// atrSize risks a fixed fraction of the balance against an ATR-derived
// per-unit risk. Without an ATR it degrades to the fixed-percent formula.
func atrSize(cfg config.PositionConfig) float64 {
	if cfg.ATR <= 0 {
		return cfg.AccountBalance * cfg.RiskPerTrade / cfg.EntryPrice
	}

	riskAmount := cfg.AccountBalance * cfg.RiskPerTrade
	riskPerUnit := cfg.ATR * cfg.ATRMultiplier
	if riskPerUnit <= 0 {
		return 0
	}
	return riskAmount / riskPerUnit
}

// riskParitySize sizes so the distance to the stop-loss price equals the
// target risk amount. Without a stop-loss price it degrades to fixed-ratio.
func riskParitySize(cfg config.PositionConfig) float64 {
	if cfg.StopLossPrice <= 0 {
		return fixedRatioSize(cfg)
	}

	riskPerUnit := math.Abs(cfg.EntryPrice - cfg.StopLossPrice)
	if riskPerUnit == 0 {
		return 0
	}

	targetRisk := cfg.AccountBalance * cfg.RiskTarget
	return targetRisk / riskPerUnit
}

// volatilitySize scales the committed capital fraction inversely with
// current volatility, clamped to [1 %, 100 %]. Without a volatility figure
// it degrades to fixed-ratio.
func volatilitySize(cfg config.PositionConfig) float64 {
	if cfg.Volatility <= 0 {
		return fixedRatioSize(cfg)
	}

	basePercent := cfg.VolatilityTarget / cfg.Volatility * cfg.PositionMultiplier
	basePercent = math.Max(0.01, math.Min(1.0, basePercent))

	return cfg.Capital() * basePercent / cfg.EntryPrice
}
