// Package agent turns analysis output into trade decisions: direction,
// confidence, position size and expiration.
package agent

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"pocket-options-bot/internal/analysis"
	"pocket-options-bot/internal/knowledge"
	"pocket-options-bot/internal/pocketoption"
)

// Decision directions. HOLD means no trade.
const (
	DirectionCall = "CALL"
	DirectionPut  = "PUT"
	DirectionHold = "HOLD"
)

// SignalContext carries everything a strategy may score on.
type SignalContext struct {
	Candles    []pocketoption.Candle // newest first
	Patterns   []analysis.PatternMatch
	Levels     analysis.SRLevels
	Indicators *analysis.IndicatorSet
	Knowledge  []knowledge.Concept
}

// Decision is the outcome of scoring one signal context.
type Decision struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Expiration int     `json:"expiration"` // seconds, 0 on HOLD
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Strategy scores a signal context into a decision. Implementations
// must be deterministic functions of the context plus their own model
// state, and must not touch venue or persistence state.
type Strategy interface {
	Score(ctx SignalContext) Decision
}

// Stats summarizes the agent's accumulated experience.
type Stats struct {
	TotalExperiences int     `json:"total_experiences"`
	IsTrained        bool    `json:"is_trained"`
	WinRate          float64 `json:"win_rate"`
}

// ===== SIZING AND EXPIRATION POLICY =====

const (
	baseTradePct   = 0.02
	maxBalancePct  = 0.05
	minTradeAmount = 1.0
)

// TradeAmount sizes a position from balance and confidence. Higher
// confidence picks a larger percentage tier; the result is always
// clamped to [$1, 5% of balance].
func TradeAmount(balance, confidence float64) float64 {
	var pct float64
	switch {
	case confidence < 0.6:
		pct = baseTradePct * 0.5
	case confidence < 0.7:
		pct = baseTradePct
	case confidence < 0.8:
		pct = baseTradePct * 1.5
	default:
		pct = baseTradePct * 2
	}

	amount := balance * pct
	if amount > balance*maxBalancePct {
		amount = balance * maxBalancePct
	}
	if amount < minTradeAmount {
		amount = minTradeAmount
	}
	return amount
}

// TradeExpiration picks an option lifetime in seconds. Quiet markets
// get longer expirations, strong patterns shorter ones.
func TradeExpiration(volatility, patternStrength float64) int {
	var base int
	switch {
	case volatility > 0.002:
		base = 60
	case volatility > 0.001:
		base = 120
	default:
		base = 300
	}

	switch {
	case patternStrength > 0.8:
		return base
	case patternStrength > 0.6:
		return base * 2
	default:
		return base * 3
	}
}

// ===== HEURISTIC STRATEGY =====

// HeuristicStrategy fuses the latest pattern with an indicator vote.
// It is the default scoring model; a learned model can replace it
// behind the same interface.
type HeuristicStrategy struct{}

var _ Strategy = (*HeuristicStrategy)(nil)

// holdThreshold is the minimum confidence that produces a trade.
const holdThreshold = 0.65

func (s *HeuristicStrategy) Score(ctx SignalContext) Decision {
	patternSignal, patternStrength := s.patternVote(ctx.Patterns)
	indicatorSignal, indicatorStrength := s.indicatorVote(ctx.Indicators)

	// CALL contributions score positive, everything else negative.
	score := patternStrength
	if patternSignal != analysis.SignalCall {
		score = -score
	}
	if indicatorSignal == DirectionCall {
		score += indicatorStrength
	} else {
		score -= indicatorStrength
	}

	confidence := clamp(abs(score)/2, 0.5, 0.9)
	if confidence < holdThreshold {
		return Decision{Direction: DirectionHold, Confidence: 0.5}
	}

	direction := DirectionPut
	if score > 0 {
		direction = DirectionCall
	}

	volatility := 0.0
	if len(ctx.Candles) > 0 {
		volatility = ctx.Indicators.RelativeATR(ctx.Candles[0].Close)
	}

	return Decision{
		Direction:  direction,
		Confidence: confidence,
		Expiration: TradeExpiration(volatility, patternStrength),
		Reasoning:  fmt.Sprintf("combined signal (pattern: %s, indicator: %s)", patternSignal, indicatorSignal),
	}
}

// patternVote takes the most recent pattern match as the pattern-side
// opinion, neutral at 0.5 when none exist.
func (s *HeuristicStrategy) patternVote(patterns []analysis.PatternMatch) (string, float64) {
	if len(patterns) == 0 {
		return analysis.SignalNeutral, 0.5
	}
	return patterns[0].Signal, patterns[0].Strength
}

// indicatorVote runs a weighted majority over RSI, MACD and the
// stochastic oscillator.
func (s *HeuristicStrategy) indicatorVote(set *analysis.IndicatorSet) (string, float64) {
	if set == nil {
		return analysis.SignalNeutral, 0.5
	}

	bullish, bearish := 0.0, 0.0
	if set.RSI != nil {
		switch set.RSI.Signal {
		case "oversold":
			bullish++
		case "overbought":
			bearish++
		}
	}
	if set.MACD != nil {
		switch set.MACD.Trend {
		case "bullish":
			bullish += 1.5
		case "bearish":
			bearish += 1.5
		}
	}
	if set.Stochastic != nil {
		switch set.Stochastic.Signal {
		case "oversold":
			bullish++
		case "overbought":
			bearish++
		}
	}

	switch {
	case bullish > bearish:
		return DirectionCall, minF(0.8, bullish/2)
	case bearish > bullish:
		return DirectionPut, minF(0.8, bearish/2)
	default:
		return analysis.SignalNeutral, 0.5
	}
}

// ===== AGENT =====

// Agent wraps a scoring strategy with the sizing/expiration policy and
// running performance counters.
type Agent struct {
	strategy Strategy
	logger   zerolog.Logger

	mu          sync.Mutex
	experiences int
	wins        int
	losses      int
}

// New creates an agent. A nil strategy falls back to the heuristic one.
func New(strategy Strategy, logger zerolog.Logger) *Agent {
	if strategy == nil {
		strategy = &HeuristicStrategy{}
	}
	return &Agent{
		strategy: strategy,
		logger:   logger.With().Str("component", "agent").Logger(),
	}
}

// GenerateSignal scores the context and records the experience.
func (a *Agent) GenerateSignal(ctx SignalContext) Decision {
	decision := a.strategy.Score(ctx)

	a.mu.Lock()
	a.experiences++
	a.mu.Unlock()

	a.logger.Debug().
		Str("direction", decision.Direction).
		Float64("confidence", decision.Confidence).
		Int("expiration", decision.Expiration).
		Msg("Signal generated")
	return decision
}

// TradeAmount applies the sizing policy.
func (a *Agent) TradeAmount(balance, confidence float64) float64 {
	return TradeAmount(balance, confidence)
}

// TradeExpiration applies the expiration policy.
func (a *Agent) TradeExpiration(volatility, patternStrength float64) int {
	return TradeExpiration(volatility, patternStrength)
}

// RecordOutcome feeds a settled trade result back into the counters.
func (a *Agent) RecordOutcome(won bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if won {
		a.wins++
	} else {
		a.losses++
	}
}

// Stats reports accumulated experience. IsTrained stays false until a
// learned strategy replaces the heuristic one.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	winRate := 0.0
	if settled := a.wins + a.losses; settled > 0 {
		winRate = float64(a.wins) / float64(settled)
	}
	return Stats{
		TotalExperiences: a.experiences,
		IsTrained:        false,
		WinRate:          winRate,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
