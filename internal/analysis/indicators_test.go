package analysis

import (
	"testing"

	"pocket-options-bot/internal/pocketoption"
)

// trendingWindow builds n candles, newest first, with closes stepping
// by `step` per bar (positive step = rising market).
func trendingWindow(n int, step float64) []pocketoption.Candle {
	candles := make([]pocketoption.Candle, n)
	for i := 0; i < n; i++ {
		c := 1.1000 - step*float64(i)
		open := c - step
		candles[i] = bar(open, maxF(open, c)+0.0001, minF(open, c)-0.0001, c)
	}
	return candles
}

func TestCalculateIndicatorsShortWindow(t *testing.T) {
	if set := CalculateIndicators(trendingWindow(19, 0.0005)); set != nil {
		t.Error("Should return nil below 20 candles")
	}
}

func TestCalculateIndicatorsRisingMarket(t *testing.T) {
	set := CalculateIndicators(trendingWindow(40, 0.0005))
	if set == nil {
		t.Fatal("Should compute indicators for a 40-candle window")
	}

	if set.RSI == nil {
		t.Fatal("Should compute RSI")
	}
	if set.RSI.Value != 100 || set.RSI.Signal != "overbought" {
		t.Errorf("Should read all-gains as overbought RSI 100, got %.1f / %q",
			set.RSI.Value, set.RSI.Signal)
	}

	if set.SMA10 == nil || set.SMA20 == nil || set.EMA10 == nil || set.EMA20 == nil {
		t.Fatal("Should compute all moving averages")
	}
	if *set.SMA10 <= *set.SMA20 {
		t.Error("Should have the short SMA above the long SMA in a rising market")
	}

	if set.MACD == nil {
		t.Error("Should compute MACD with 40 candles")
	}

	if set.Bollinger == nil {
		t.Fatal("Should compute Bollinger bands")
	}
	if set.Bollinger.Upper <= set.Bollinger.Middle || set.Bollinger.Middle <= set.Bollinger.Lower {
		t.Error("Should order the bands upper > middle > lower")
	}
	if set.Bollinger.Position != "upper_half" {
		t.Errorf("Should place the latest close in the upper half, got %q", set.Bollinger.Position)
	}

	if set.Stochastic == nil {
		t.Fatal("Should compute the stochastic oscillator")
	}
	if set.Stochastic.Signal != "overbought" {
		t.Errorf("Should read a monotonic rise as overbought, got %q (K=%.1f)",
			set.Stochastic.Signal, set.Stochastic.K)
	}

	if set.ATR == nil {
		t.Fatal("Should compute ATR")
	}
	if set.ATR.Value <= 0 {
		t.Errorf("Should have a positive ATR, got %.6f", set.ATR.Value)
	}
	if set.ATR.Volatility == "" {
		t.Error("Should classify volatility")
	}
}

func TestCalculateIndicatorsFallingMarket(t *testing.T) {
	set := CalculateIndicators(trendingWindow(40, -0.0005))
	if set == nil {
		t.Fatal("Should compute indicators")
	}
	if set.RSI.Value != 0 || set.RSI.Signal != "oversold" {
		t.Errorf("Should read all-losses as oversold RSI 0, got %.1f / %q",
			set.RSI.Value, set.RSI.Signal)
	}
	if set.Stochastic.Signal != "oversold" {
		t.Errorf("Should read a monotonic fall as oversold, got %q", set.Stochastic.Signal)
	}
}

func TestCalculateIndicatorsPartialWindow(t *testing.T) {
	// 20 candles: enough for the set but not for MACD (26+9 bars).
	set := CalculateIndicators(trendingWindow(20, 0.0005))
	if set == nil {
		t.Fatal("Should compute indicators at exactly 20 candles")
	}
	if set.MACD != nil {
		t.Error("Should leave MACD nil when the window is too short for it")
	}
	if set.RSI == nil || set.SMA20 == nil || set.Bollinger == nil || set.ATR == nil {
		t.Error("Should still compute the indicators that fit the window")
	}
}

func TestRelativeATR(t *testing.T) {
	var nilSet *IndicatorSet
	if nilSet.RelativeATR(1.1) != 0 {
		t.Error("Should return 0 for a nil set")
	}

	set := &IndicatorSet{ATR: &ATRResult{Value: 0.0011}}
	if got := set.RelativeATR(1.1); got < 0.00099 || got > 0.00101 {
		t.Errorf("Should divide ATR by price, got %.6f", got)
	}
	if set.RelativeATR(0) != 0 {
		t.Error("Should return 0 for a zero price")
	}
}
