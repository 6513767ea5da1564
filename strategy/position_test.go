package strategy

import (
	"errors"
	"math"
	"testing"

	"github.com/evdnx/gorisk/config"
)

// basePositionConfig returns a config every sizer test starts from:
// 10 000 balance, entry at 100, no clamp below 100 % of capital.
func basePositionConfig(strategyType string) config.PositionConfig {
	return config.PositionConfig{
		StrategyType:       strategyType,
		AccountBalance:     10000,
		EntryPrice:         100,
		MaxPositionPercent: 1.0,
	}
}

func almostEqual(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got %f, want %f (eps %f)", got, want, eps)
	}
}

/*
-----------------------------------------------------------------------
Test 1 – Kelly sizing with full historical stats.
-----------------------------------------------------------------------
winRate 0.55, avgWin 200, avgLoss 150, quarter-Kelly:

	b  = 200/150 = 1.3333
	f* = (1.3333*0.55 - 0.45) / 1.3333 = 0.2125
	f  = 0.2125 * 0.25 = 0.053125
	size = 10000 * 0.053125 / 100 = 5.3125
*/
func TestPositionSize_Kelly(t *testing.T) {
	cfg := basePositionConfig(SizerKelly)
	cfg.WinRate = 0.55
	cfg.AvgWin = 200
	cfg.AvgLoss = 150
	cfg.KellyFraction = 0.25

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 5.3125, 1e-9)
	almostEqual(t, dec.Value, 531.25, 1e-6)
}

/*
-----------------------------------------------------------------------
Test 2 – Kelly without stats degrades to the fixed-percent fallback.
-----------------------------------------------------------------------
*/
func TestPositionSize_KellyFallback(t *testing.T) {
	cfg := basePositionConfig(SizerKelly)

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10000 * 0.02 / 100
	almostEqual(t, dec.Size, 2.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 3 – Kelly with a negative edge never goes short.
-----------------------------------------------------------------------
winRate 0.30 with a 1:1 payoff gives f* < 0; the sizer floors at zero
and the clamp keeps the result at the (zero) minimum.
*/
func TestPositionSize_KellyNegativeEdge(t *testing.T) {
	cfg := basePositionConfig(SizerKelly)
	cfg.WinRate = 0.30
	cfg.AvgWin = 100
	cfg.AvgLoss = 100

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Size != 0 {
		t.Fatalf("expected zero size for a negative edge, got %f", dec.Size)
	}
}

/*
-----------------------------------------------------------------------
Test 4 – Fixed-ratio sizing commits a flat percent of capital.
-----------------------------------------------------------------------
*/
func TestPositionSize_FixedRatio(t *testing.T) {
	cfg := basePositionConfig(SizerFixedRatio)
	cfg.FixedPercent = 0.05

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10000 * 0.05 / 100
	almostEqual(t, dec.Size, 5.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 5 – Fixed-ratio prefers TotalCapital over AccountBalance.
-----------------------------------------------------------------------
*/
func TestPositionSize_FixedRatioTotalCapital(t *testing.T) {
	cfg := basePositionConfig(SizerFixedRatio)
	cfg.TotalCapital = 20000
	cfg.FixedPercent = 0.05

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 10.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 6 – ATR sizing risks a fixed fraction against the ATR distance.
-----------------------------------------------------------------------
riskAmount = 10000*0.02 = 200, riskPerUnit = ATR 2 * mult 1 = 2 → 100.
*/
func TestPositionSize_ATR(t *testing.T) {
	cfg := basePositionConfig(SizerATR)
	cfg.ATR = 2.0

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 100.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 7 – ATR sizing without an ATR uses the risk-percent fallback.
-----------------------------------------------------------------------
*/
func TestPositionSize_ATRFallback(t *testing.T) {
	cfg := basePositionConfig(SizerATR)

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10000 * 0.02 / 100
	almostEqual(t, dec.Size, 2.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 8 – Risk-parity sizing from the stop-loss distance.
-----------------------------------------------------------------------
targetRisk = 10000*0.02 = 200, distance = 100-95 = 5 → 40.
*/
func TestPositionSize_RiskParity(t *testing.T) {
	cfg := basePositionConfig(SizerRiskParity)
	cfg.StopLossPrice = 95

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 40.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 9 – Volatility sizing scales inversely with volatility.
-----------------------------------------------------------------------
basePercent = 0.15/0.30 = 0.5 → 10000*0.5/100 = 50.
*/
func TestPositionSize_Volatility(t *testing.T) {
	cfg := basePositionConfig(SizerVolatility)
	cfg.Volatility = 0.30

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 50.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 10 – Volatility sizing clamps the capital fraction to [1 %, 100 %].
-----------------------------------------------------------------------
Tiny volatility would ask for 15x the capital; the fraction caps at 1.0.
*/
func TestPositionSize_VolatilityFractionClamp(t *testing.T) {
	cfg := basePositionConfig(SizerVolatility)
	cfg.Volatility = 0.01

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Full capital: 10000 / 100.
	almostEqual(t, dec.Size, 100.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 11 – The common clamp: min, absolute max and percent-of-capital max.
-----------------------------------------------------------------------
*/
func TestPositionSize_Clamp(t *testing.T) {
	// Raw ATR size of 100 capped by the default 30 % of capital (= 30).
	cfg := basePositionConfig(SizerATR)
	cfg.ATR = 2.0
	cfg.MaxPositionPercent = 0 // resolves to the 0.3 default

	dec, err := CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 30.0, 1e-9)

	// The absolute cap wins when tighter than the percent cap.
	cfg.MaxPositionPercent = 1.0
	cfg.MaxPositionSize = 12
	dec, err = CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 12.0, 1e-9)

	// The minimum floors a too-small raw size.
	cfg = basePositionConfig(SizerFixedRatio)
	cfg.FixedPercent = 0.001 // raw size 0.1
	cfg.MinPositionSize = 1.0
	dec, err = CalculatePositionSize(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	almostEqual(t, dec.Size, 1.0, 1e-9)
}

/*
-----------------------------------------------------------------------
Test 12 – Unknown selector and invalid config surface as errors.
-----------------------------------------------------------------------
*/
func TestPositionSize_Errors(t *testing.T) {
	cfg := basePositionConfig("martingale")
	_, err := CalculatePositionSize(cfg)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cerr.Concern != "position" || cerr.Selector != "martingale" {
		t.Fatalf("unexpected error fields: %+v", cerr)
	}

	cfg = basePositionConfig(SizerFixedRatio)
	cfg.EntryPrice = 0
	if _, err := CalculatePositionSize(cfg); err == nil {
		t.Fatal("expected validation error for zero entry price")
	}

	cfg = basePositionConfig(SizerKelly)
	cfg.WinRate = 1.5
	if _, err := CalculatePositionSize(cfg); err == nil {
		t.Fatal("expected validation error for win rate above 1")
	}
}

/*
-----------------------------------------------------------------------
Test 13 – The selector listing stays in sync with the registry.
-----------------------------------------------------------------------
*/
func TestPositionSizers_Listing(t *testing.T) {
	listed := PositionSizers()
	if len(listed) != len(sizers) {
		t.Fatalf("listing has %d selectors, registry has %d", len(listed), len(sizers))
	}
	for _, name := range listed {
		if _, ok := sizers[name]; !ok {
			t.Fatalf("listed selector %q missing from registry", name)
		}
	}
}
