package agent

import (
	"testing"

	"github.com/rs/zerolog"

	"pocket-options-bot/internal/analysis"
	"pocket-options-bot/internal/pocketoption"
)

func TestTradeAmountTiers(t *testing.T) {
	cases := []struct {
		confidence float64
		want       float64
	}{
		{0.55, 100}, // 1% tier
		{0.65, 200}, // 2% tier
		{0.75, 300}, // 3% tier
		{0.82, 400}, // 4% tier
	}
	for _, tc := range cases {
		if got := TradeAmount(10000, tc.confidence); got != tc.want {
			t.Errorf("Should size $%0.f at confidence %.2f, got $%.2f", tc.want, tc.confidence, got)
		}
	}
}

func TestTradeAmountClamps(t *testing.T) {
	// The 4% tier would exceed 5% of a small balance only via the floor.
	if got := TradeAmount(10, 0.9); got != 1 {
		t.Errorf("Should floor the amount at $1, got $%.2f", got)
	}
	// 5% cap binds when a tier computes above it.
	if got := TradeAmount(10000, 0.99); got > 10000*0.05 {
		t.Errorf("Should cap the amount at 5%% of balance, got $%.2f", got)
	}
}

func TestTradeAmountMonotone(t *testing.T) {
	prev := 0.0
	for c := 0.50; c <= 0.90; c += 0.01 {
		amount := TradeAmount(10000, c)
		if amount < prev {
			t.Fatalf("Should never shrink the amount as confidence rises, %.2f -> $%.2f after $%.2f", c, amount, prev)
		}
		prev = amount
	}
}

func TestTradeExpiration(t *testing.T) {
	cases := []struct {
		volatility float64
		strength   float64
		want       int
	}{
		{0.003, 0.9, 60},    // volatile market, strong pattern
		{0.0015, 0.7, 240},  // medium volatility, middling pattern
		{0.0005, 0.5, 900},  // quiet market, weak pattern
		{0.003, 0.5, 180},   // volatile market, weak pattern
	}
	for _, tc := range cases {
		if got := TradeExpiration(tc.volatility, tc.strength); got != tc.want {
			t.Errorf("Should pick %ds for vol=%.4f strength=%.1f, got %ds",
				tc.want, tc.volatility, tc.strength, got)
		}
	}
}

func bullishContext() SignalContext {
	return SignalContext{
		Candles: []pocketoption.Candle{{Asset: "EURUSD_otc", Close: 1.1}},
		Patterns: []analysis.PatternMatch{
			{Pattern: "Bullish Engulfing", Signal: analysis.SignalCall, Strength: 0.9},
		},
		Indicators: &analysis.IndicatorSet{
			RSI:        &analysis.RSIResult{Value: 25, Signal: "oversold"},
			MACD:       &analysis.MACDResult{Trend: "bullish"},
			Stochastic: &analysis.StochasticResult{K: 15, Signal: "oversold"},
		},
	}
}

func TestHeuristicStrategyCall(t *testing.T) {
	var s HeuristicStrategy
	decision := s.Score(bullishContext())

	if decision.Direction != DirectionCall {
		t.Errorf("Should decide CALL on aligned bullish signals, got %q", decision.Direction)
	}
	if decision.Confidence < 0.65 || decision.Confidence > 0.9 {
		t.Errorf("Should land confidence in [0.65, 0.9], got %.2f", decision.Confidence)
	}
	if decision.Expiration <= 0 {
		t.Errorf("Should set a positive expiration, got %d", decision.Expiration)
	}
}

func TestHeuristicStrategyPut(t *testing.T) {
	ctx := SignalContext{
		Candles: []pocketoption.Candle{{Close: 1.1}},
		Patterns: []analysis.PatternMatch{
			{Pattern: "Bearish Engulfing", Signal: analysis.SignalPut, Strength: 0.9},
		},
		Indicators: &analysis.IndicatorSet{
			RSI:  &analysis.RSIResult{Value: 78, Signal: "overbought"},
			MACD: &analysis.MACDResult{Trend: "bearish"},
		},
	}

	var s HeuristicStrategy
	decision := s.Score(ctx)
	if decision.Direction != DirectionPut {
		t.Errorf("Should decide PUT on aligned bearish signals, got %q", decision.Direction)
	}
}

func TestHeuristicStrategyHoldsWhenWeak(t *testing.T) {
	var s HeuristicStrategy
	decision := s.Score(SignalContext{})

	if decision.Direction != DirectionHold {
		t.Errorf("Should HOLD without signals, got %q", decision.Direction)
	}
	if decision.Confidence != 0.5 {
		t.Errorf("Should report baseline 0.5 confidence on HOLD, got %.2f", decision.Confidence)
	}
	if decision.Expiration != 0 {
		t.Errorf("Should not set an expiration on HOLD, got %d", decision.Expiration)
	}
}

func TestHeuristicStrategyConfidenceBounds(t *testing.T) {
	// Maximal aligned signals must still cap at 0.9.
	ctx := bullishContext()
	ctx.Patterns[0].Strength = 1.0

	var s HeuristicStrategy
	decision := s.Score(ctx)
	if decision.Confidence > 0.9 {
		t.Errorf("Should cap confidence at 0.9, got %.2f", decision.Confidence)
	}
}

func TestAgentStats(t *testing.T) {
	a := New(nil, zerolog.Nop())

	stats := a.Stats()
	if stats.TotalExperiences != 0 || stats.WinRate != 0 || stats.IsTrained {
		t.Errorf("Should start with empty stats, got %+v", stats)
	}

	a.GenerateSignal(bullishContext())
	a.GenerateSignal(SignalContext{})
	a.RecordOutcome(true)
	a.RecordOutcome(false)

	stats = a.Stats()
	if stats.TotalExperiences != 2 {
		t.Errorf("Should count every generated signal, got %d", stats.TotalExperiences)
	}
	if stats.WinRate != 0.5 {
		t.Errorf("Should compute the win rate from settled outcomes, got %.2f", stats.WinRate)
	}
}
