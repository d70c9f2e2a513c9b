package bot

import (
	"context"
	"time"

	"pocket-options-bot/internal/agent"
	"pocket-options-bot/internal/analysis"
	"pocket-options-bot/internal/pocketoption"
)

// PendingTrade is an open position awaiting settlement.
type PendingTrade struct {
	TradeID    string    `json:"trade_id"`
	Asset      string    `json:"asset"`
	Direction  string    `json:"direction"`
	Amount     float64   `json:"amount"`
	Expiration int       `json:"expiration"`
	Confidence float64   `json:"confidence"`
	OpenedAt   time.Time `json:"opened_at"`
}

// SettledTrade is a closed position with its outcome.
type SettledTrade struct {
	TradeID   string    `json:"trade_id"`
	Asset     string    `json:"asset"`
	Direction string    `json:"direction"`
	Amount    float64   `json:"amount"`
	Outcome   string    `json:"outcome"`
	Profit    float64   `json:"profit"`
	SettledAt time.Time `json:"settled_at"`
}

// executeTrade sizes and places one trade from a non-HOLD decision.
func (b *Bot) executeTrade(ctx context.Context, asset string, decision agent.Decision) {
	b.mu.RLock()
	balance := b.balance
	b.mu.RUnlock()

	amount := b.agent.TradeAmount(balance, decision.Confidence)
	if amount < 1 || amount > balance {
		b.logger.Warn().Float64("amount", amount).Float64("balance", balance).
			Msg("Trade skipped: amount outside bounds")
		return
	}

	direction := pocketoption.DirectionCall
	if decision.Direction == agent.DirectionPut {
		direction = pocketoption.DirectionPut
	}

	ticket, err := b.client.PlaceTrade(ctx, asset, amount, direction, decision.Expiration)
	if err != nil {
		b.logger.Error().Err(err).Str("asset", asset).Msg("Trade placement failed")
		b.bus.PublishError("bot", "trade placement failed", err)
		return
	}

	b.mu.Lock()
	b.pending[ticket.TradeID] = &PendingTrade{
		TradeID:    ticket.TradeID,
		Asset:      asset,
		Direction:  decision.Direction,
		Amount:     amount,
		Expiration: decision.Expiration,
		Confidence: decision.Confidence,
		OpenedAt:   time.Now(),
	}
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.SaveTrade(ctx, ticket.TradeID, asset, decision.Direction, amount, decision.Expiration); err != nil {
			b.logger.Warn().Err(err).Str("trade_id", ticket.TradeID).Msg("Trade not persisted")
		}
	}

	b.bus.PublishTradeOpened(ticket.TradeID, asset, decision.Direction, amount, decision.Expiration)
	b.logger.Info().
		Str("trade_id", ticket.TradeID).
		Str("asset", asset).
		Str("direction", decision.Direction).
		Float64("amount", amount).
		Float64("confidence", decision.Confidence).
		Int("expiration", decision.Expiration).
		Msg("Trade opened")
}

// resolveTrades polls the venue for every pending trade and settles the
// ones that have finished. A trade is removed from pending before its
// outcome is applied, so each trade settles exactly once even if the
// venue keeps reporting it.
func (b *Bot) resolveTrades(ctx context.Context) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	for _, id := range ids {
		outcome, err := b.client.CheckTradeOutcome(ctx, id)
		if err != nil {
			b.logger.Warn().Err(err).Str("trade_id", id).Msg("Outcome check failed")
			continue
		}
		if !outcome.Settled {
			continue
		}
		b.settleTrade(ctx, id, outcome.Outcome)
	}
}

// settleTrade applies one settled outcome to balance, history and the
// persistence layer.
func (b *Bot) settleTrade(ctx context.Context, tradeID, outcome string) {
	b.mu.Lock()
	trade, ok := b.pending[tradeID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, tradeID)

	won := outcome == "win"
	profit := -trade.Amount
	if won {
		profit = trade.Amount * b.cfg.TradingConfig.PayoutRatio
	}
	b.balance += profit
	balance := b.balance

	settled := SettledTrade{
		TradeID:   trade.TradeID,
		Asset:     trade.Asset,
		Direction: trade.Direction,
		Amount:    trade.Amount,
		Outcome:   outcome,
		Profit:    profit,
		SettledAt: time.Now(),
	}
	b.history = append(b.history, settled)
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.UpdateTradeOutcome(ctx, tradeID, outcome, profit); err != nil {
			b.logger.Warn().Err(err).Str("trade_id", tradeID).Msg("Outcome not persisted")
		}
	}

	b.agent.RecordOutcome(won)
	b.bus.PublishTradeResolved(tradeID, trade.Asset, outcome, profit, balance)
	b.bus.PublishBalanceUpdate(balance)

	b.logger.Info().
		Str("trade_id", tradeID).
		Str("asset", trade.Asset).
		Str("outcome", outcome).
		Float64("profit", profit).
		Float64("balance", balance).
		Msg("Trade settled")
}

// ===== SNAPSHOTS =====

// Status is the dashboard view of the bot.
type Status struct {
	IsRunning        bool           `json:"is_running"`
	IsTrading        bool           `json:"is_trading"`
	IsLearning       bool           `json:"is_learning"`
	Connected        bool           `json:"connected"`
	SimulationMode   bool           `json:"simulation_mode"`
	Balance          float64        `json:"balance"`
	CurrentAsset     string         `json:"current_asset"`
	CurrentTimeframe int            `json:"current_timeframe"`
	MinConfidence    float64        `json:"min_confidence"`
	PatternsDetected int            `json:"patterns_detected"`
	PendingTrades    int            `json:"pending_trades"`
	TotalTrades      int            `json:"total_trades"`
	AgentStats       agent.Stats    `json:"agent_stats"`
	KnowledgeStats   knowledgeStats `json:"knowledge_stats"`
}

type knowledgeStats struct {
	TotalConcepts int            `json:"total_concepts"`
	Categories    map[string]int `json:"categories"`
}

// MarketAnalysis is one asset's latest analysis snapshot.
type MarketAnalysis struct {
	Asset      string                  `json:"asset"`
	Timeframe  int                     `json:"timeframe"`
	Patterns   []analysis.PatternMatch `json:"patterns"`
	Levels     analysis.SRLevels       `json:"levels"`
	Indicators *analysis.IndicatorSet  `json:"indicators"`
	Trend      string                  `json:"trend"`
	Candles    []pocketoption.Candle   `json:"candles"`
}

// TradeStats summarizes the session's trading record.
type TradeStats struct {
	TotalTrades   int            `json:"total_trades"`
	TotalWins     int            `json:"total_wins"`
	TotalLosses   int            `json:"total_losses"`
	WinRate       float64        `json:"win_rate"`
	PendingTrades []PendingTrade `json:"pending_trades"`
	RecentTrades  []SettledTrade `json:"recent_trades"`
}

// Status snapshots the bot state for the dashboard.
func (b *Bot) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	patternsDetected := 0
	if snap, ok := b.snapshots[b.currentAsset]; ok {
		patternsDetected = len(snap.patterns)
	}

	learnerStats := b.learner.Stats()
	return Status{
		IsRunning:        b.state == StateRunning,
		IsTrading:        b.tradingEnabled,
		IsLearning:       b.cfg.LearningConfig.Enabled,
		Connected:        b.client.IsConnected(),
		SimulationMode:   b.client.IsSimulation(),
		Balance:          b.balance,
		CurrentAsset:     b.currentAsset,
		CurrentTimeframe: b.currentTimeframe,
		MinConfidence:    b.minConfidence,
		PatternsDetected: patternsDetected,
		PendingTrades:    len(b.pending),
		TotalTrades:      len(b.history),
		AgentStats:       b.agent.Stats(),
		KnowledgeStats: knowledgeStats{
			TotalConcepts: learnerStats.TotalConcepts,
			Categories:    learnerStats.Categories,
		},
	}
}

// maxAnalysisPatterns caps how many pattern matches the dashboard sees.
const maxAnalysisPatterns = 10

// MarketAnalysis snapshots the active asset's latest analysis.
func (b *Bot) MarketAnalysis() MarketAnalysis {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := MarketAnalysis{
		Asset:     b.currentAsset,
		Timeframe: b.currentTimeframe,
		Trend:     "unknown",
	}

	window := b.marketData[b.currentAsset]
	if len(window) > 0 {
		result.Candles = append([]pocketoption.Candle(nil), window...)
		result.Trend = analysis.DetectTrend(window, trendPeriod)
	}
	if snap, ok := b.snapshots[b.currentAsset]; ok {
		patterns := snap.patterns
		if len(patterns) > maxAnalysisPatterns {
			patterns = patterns[:maxAnalysisPatterns]
		}
		result.Patterns = append([]analysis.PatternMatch(nil), patterns...)
		result.Levels = snap.levels
		result.Indicators = snap.indicators
	}
	return result
}

// recentTradeCount bounds the history slice returned to the dashboard.
const recentTradeCount = 10

// TradeStats snapshots the session trading record.
func (b *Bot) TradeStats() TradeStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	wins, losses := 0, 0
	for _, trade := range b.history {
		if trade.Outcome == "win" {
			wins++
		} else {
			losses++
		}
	}

	winRate := 0.0
	if len(b.history) > 0 {
		winRate = float64(wins) / float64(len(b.history))
	}

	recent := b.history
	if len(recent) > recentTradeCount {
		recent = recent[len(recent)-recentTradeCount:]
	}

	pending := make([]PendingTrade, 0, len(b.pending))
	for _, trade := range b.pending {
		pending = append(pending, *trade)
	}

	return TradeStats{
		TotalTrades:   len(b.history),
		TotalWins:     wins,
		TotalLosses:   losses,
		WinRate:       winRate,
		PendingTrades: pending,
		RecentTrades:  append([]SettledTrade(nil), recent...),
	}
}
