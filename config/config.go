package config

import (
	"errors"
	"fmt"

	"github.com/evdnx/gorisk/types"
)

// LadderStep is one tier of a ladder stop-loss or take-profit. ProfitPercent
// is the unrealized-profit threshold that unlocks the tier; TargetPercent is
// the stop/target offset from the entry price once unlocked; ClosePercent is
// the fraction of the position a ladder take-profit closes at the tier.
type LadderStep struct {
	ProfitPercent float64 `yaml:"profit_percent"`
	TargetPercent float64 `yaml:"target_percent"`
	ClosePercent  float64 `yaml:"close_percent"`
}

// PartialStep is one tier of a partial take-profit: no price target, just a
// profit threshold and the fraction to close when it is reached.
type PartialStep struct {
	ProfitPercent float64 `yaml:"profit_percent"`
	ClosePercent  float64 `yaml:"close_percent"`
}

// PositionConfig parameterizes one position-size calculation. Zero-valued
// optional fields mean "not supplied" and select the documented fallback or
// default; all the optional quantities are strictly positive when real.
type PositionConfig struct {
	StrategyType string `yaml:"strategy_type"` // kelly, fixed_ratio, atr_based, risk_parity, volatility

	AccountBalance float64 `yaml:"account_balance"`
	TotalCapital   float64 `yaml:"total_capital"` // 0 = use AccountBalance

	EntryPrice    float64 `yaml:"entry_price"`
	StopLossPrice float64 `yaml:"stop_loss_price"`
	ATR           float64 `yaml:"atr"`
	Volatility    float64 `yaml:"volatility"`

	// Kelly parameters.
	WinRate       float64 `yaml:"win_rate"`
	AvgWin        float64 `yaml:"avg_win"`
	AvgLoss       float64 `yaml:"avg_loss"`
	KellyFraction float64 `yaml:"kelly_fraction"` // default 0.25

	FixedPercent float64 `yaml:"fixed_percent"` // default 0.02

	ATRMultiplier float64 `yaml:"atr_multiplier"` // default 1.0
	RiskPerTrade  float64 `yaml:"risk_per_trade"` // default 0.02

	RiskTarget float64 `yaml:"risk_target"` // default 0.02

	VolatilityTarget   float64 `yaml:"volatility_target"`   // default 0.15
	PositionMultiplier float64 `yaml:"position_multiplier"` // default 1.0

	// Common clamp.
	MaxPositionSize    float64 `yaml:"max_position_size"` // 0 = unbounded
	MinPositionSize    float64 `yaml:"min_position_size"`
	MaxPositionPercent float64 `yaml:"max_position_percent"` // default 0.3
}

// Capital returns the capital base for percent-of-capital formulas.
func (c *PositionConfig) Capital() float64 {
	if c.TotalCapital > 0 {
		return c.TotalCapital
	}
	return c.AccountBalance
}

// WithDefaults returns a copy with every optional parameter resolved, so the
// formulas never re-check "is this set" per call.
func (c PositionConfig) WithDefaults() PositionConfig {
	if c.KellyFraction <= 0 {
		c.KellyFraction = 0.25
	}
	if c.FixedPercent <= 0 {
		c.FixedPercent = 0.02
	}
	if c.ATRMultiplier <= 0 {
		c.ATRMultiplier = 1.0
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 0.02
	}
	if c.RiskTarget <= 0 {
		c.RiskTarget = 0.02
	}
	if c.VolatilityTarget <= 0 {
		c.VolatilityTarget = 0.15
	}
	if c.PositionMultiplier <= 0 {
		c.PositionMultiplier = 1.0
	}
	if c.MaxPositionPercent <= 0 {
		c.MaxPositionPercent = 0.3
	}
	return c
}

// Validate checks the fields every sizer depends on.
func (c *PositionConfig) Validate() error {
	if c.EntryPrice <= 0 {
		return errors.New("EntryPrice must be positive")
	}
	if c.AccountBalance < 0 {
		return errors.New("AccountBalance cannot be negative")
	}
	if c.WinRate < 0 || c.WinRate > 1 {
		return fmt.Errorf("WinRate (%f) must be within [0, 1]", c.WinRate)
	}
	if c.MinPositionSize < 0 {
		return errors.New("MinPositionSize cannot be negative")
	}
	if c.MaxPositionSize < 0 {
		return errors.New("MaxPositionSize cannot be negative")
	}
	return nil
}

// StopLossConfig parameterizes one stop-loss strategy instance for a single
// long position.
type StopLossConfig struct {
	StrategyType string `yaml:"strategy_type"` // fixed, dynamic, trailing, ladder

	EntryPrice   float64 `yaml:"entry_price"`
	PositionSize float64 `yaml:"position_size"`

	StopLossPercent float64 `yaml:"stop_loss_percent"` // default 0.05

	ATRPeriod     int     `yaml:"atr_period"`     // default 14
	ATRMultiplier float64 `yaml:"atr_multiplier"` // default 2.0

	TrailingPercent  float64 `yaml:"trailing_percent"`
	ActivationProfit float64 `yaml:"activation_profit"` // unrealized profit % that arms trailing

	LadderSteps []LadderStep `yaml:"ladder_steps"`

	MaxLossAmount float64 `yaml:"max_loss_amount"` // 0 = no cap
}

// WithDefaults resolves optional parameters, including the default ladder.
func (c StopLossConfig) WithDefaults() StopLossConfig {
	if c.StopLossPercent <= 0 {
		c.StopLossPercent = 0.05
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ATRMultiplier <= 0 {
		c.ATRMultiplier = 2.0
	}
	if len(c.LadderSteps) == 0 {
		c.LadderSteps = []LadderStep{
			{ProfitPercent: 0.02, TargetPercent: 0.01, ClosePercent: 0.3},
			{ProfitPercent: 0.05, TargetPercent: 0.02, ClosePercent: 0.4},
			{ProfitPercent: 0.10, TargetPercent: 0.03, ClosePercent: 0.5},
		}
	}
	return c
}

func (c *StopLossConfig) Validate() error {
	if c.EntryPrice <= 0 {
		return errors.New("EntryPrice must be positive")
	}
	if c.PositionSize <= 0 {
		return errors.New("PositionSize must be positive")
	}
	if c.StopLossPercent < 0 || c.StopLossPercent >= 1 {
		return fmt.Errorf("StopLossPercent (%f) must be within [0, 1)", c.StopLossPercent)
	}
	if c.TrailingPercent < 0 || c.TrailingPercent >= 1 {
		return fmt.Errorf("TrailingPercent (%f) must be within [0, 1)", c.TrailingPercent)
	}
	return nil
}

// TakeProfitConfig parameterizes one take-profit strategy instance.
type TakeProfitConfig struct {
	StrategyType string `yaml:"strategy_type"` // fixed, dynamic, ladder, partial

	EntryPrice   float64 `yaml:"entry_price"`
	PositionSize float64 `yaml:"position_size"`

	TakeProfitPercent float64 `yaml:"take_profit_percent"` // default 0.10 (fixed) / 0.15 (dynamic inactive)

	RSIPeriod     int     `yaml:"rsi_period"`     // default 14
	RSIOverbought float64 `yaml:"rsi_overbought"` // default 70

	LadderSteps  []LadderStep  `yaml:"ladder_steps"`
	PartialSteps []PartialStep `yaml:"partial_steps"`

	MaxProfitAmount float64 `yaml:"max_profit_amount"` // 0 = no cap
	TrailingPercent float64 `yaml:"trailing_percent"`  // pullback % for the dynamic variant
}

// WithDefaults resolves optional parameters, including the default ladder
// and partial tier tables.
func (c TakeProfitConfig) WithDefaults() TakeProfitConfig {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.RSIOverbought <= 0 {
		c.RSIOverbought = 70
	}
	if len(c.LadderSteps) == 0 {
		c.LadderSteps = []LadderStep{
			{ProfitPercent: 0.05, TargetPercent: 0.03, ClosePercent: 0.3},
			{ProfitPercent: 0.10, TargetPercent: 0.05, ClosePercent: 0.3},
			{ProfitPercent: 0.15, TargetPercent: 0.08, ClosePercent: 0.4},
		}
	}
	if len(c.PartialSteps) == 0 {
		c.PartialSteps = []PartialStep{
			{ProfitPercent: 0.03, ClosePercent: 0.3},
			{ProfitPercent: 0.06, ClosePercent: 0.3},
			{ProfitPercent: 0.10, ClosePercent: 0.2},
			{ProfitPercent: 0.15, ClosePercent: 0.2},
		}
	}
	return c
}

func (c *TakeProfitConfig) Validate() error {
	if c.EntryPrice <= 0 {
		return errors.New("EntryPrice must be positive")
	}
	if c.PositionSize <= 0 {
		return errors.New("PositionSize must be positive")
	}
	if c.TakeProfitPercent < 0 {
		return errors.New("TakeProfitPercent cannot be negative")
	}
	if c.TrailingPercent < 0 || c.TrailingPercent >= 1 {
		return fmt.Errorf("TrailingPercent (%f) must be within [0, 1)", c.TrailingPercent)
	}
	return nil
}

// AlertConfig is the snapshot an alert evaluator sees: account, portfolio and
// market facts plus the thresholds for its own alert type. A zero threshold
// means the corresponding check is disabled.
type AlertConfig struct {
	AlertType string `yaml:"alert_type"` // threshold, trend, volatility, drawdown, portfolio

	AccountBalance float64 `yaml:"account_balance"`
	InitialBalance float64 `yaml:"initial_balance"`

	CurrentPrice  float64   `yaml:"current_price"`
	PricesHistory []float64 `yaml:"prices_history"`

	TotalPositionValue float64          `yaml:"total_position_value"`
	Positions          []types.Position `yaml:"positions"`

	UnrealizedPnL float64 `yaml:"unrealized_pnl"`
	RealizedPnL   float64 `yaml:"realized_pnl"`

	// Threshold alert.
	BalanceThreshold  float64 `yaml:"balance_threshold"`
	PnLThreshold      float64 `yaml:"pnl_threshold"`
	PositionThreshold float64 `yaml:"position_threshold"`

	// Trend alert.
	TrendPeriod    int     `yaml:"trend_period"`    // default 20
	TrendThreshold float64 `yaml:"trend_threshold"` // default 0.05

	// Volatility alert.
	VolatilityPeriod    int     `yaml:"volatility_period"`    // default 20
	VolatilityThreshold float64 `yaml:"volatility_threshold"` // default 0.05

	// Drawdown alert.
	DrawdownThreshold float64 `yaml:"drawdown_threshold"` // default 0.10
	PeakBalance       float64 `yaml:"peak_balance"`       // 0 = start from AccountBalance

	// Portfolio alert.
	ConcentrationThreshold float64 `yaml:"concentration_threshold"` // default 0.5

	CoolingPeriod int `yaml:"cooling_period"` // seconds, default 300
}

// WithDefaults resolves the optional periods and thresholds.
func (c AlertConfig) WithDefaults() AlertConfig {
	if c.TrendPeriod <= 0 {
		c.TrendPeriod = 20
	}
	if c.TrendThreshold <= 0 {
		c.TrendThreshold = 0.05
	}
	if c.VolatilityPeriod <= 0 {
		c.VolatilityPeriod = 20
	}
	if c.VolatilityThreshold <= 0 {
		c.VolatilityThreshold = 0.05
	}
	if c.DrawdownThreshold <= 0 {
		c.DrawdownThreshold = 0.10
	}
	if c.ConcentrationThreshold <= 0 {
		c.ConcentrationThreshold = 0.5
	}
	if c.CoolingPeriod <= 0 {
		c.CoolingPeriod = 300
	}
	return c
}

func (c *AlertConfig) Validate() error {
	if c.AccountBalance < 0 {
		return errors.New("AccountBalance cannot be negative")
	}
	if c.ConcentrationThreshold < 0 || c.ConcentrationThreshold > 1 {
		return fmt.Errorf("ConcentrationThreshold (%f) must be within [0, 1]", c.ConcentrationThreshold)
	}
	if c.CoolingPeriod < 0 {
		return errors.New("CoolingPeriod cannot be negative")
	}
	return nil
}
