package database

import (
	"context"
	"fmt"

	"pocket-options-bot/internal/analysis"
	"pocket-options-bot/internal/knowledge"
	"pocket-options-bot/internal/pocketoption"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

var _ knowledge.Store = (*Repository)(nil)

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ============================================================================
// TRADES
// ============================================================================

// SaveTrade inserts a newly opened trade
func (r *Repository) SaveTrade(ctx context.Context, tradeID, asset, direction string, amount float64, expiration int) error {
	query := `
		INSERT INTO trades (trade_id, asset, amount, direction, expiration)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query, tradeID, asset, amount, direction, expiration)
	if err != nil {
		return fmt.Errorf("saving trade %s: %w", tradeID, err)
	}
	return nil
}

// UpdateTradeOutcome records the settled result of a trade
func (r *Repository) UpdateTradeOutcome(ctx context.Context, tradeID, outcome string, profit float64) error {
	query := `UPDATE trades SET outcome = $2, profit = $3 WHERE trade_id = $1`
	_, err := r.db.Pool.Exec(ctx, query, tradeID, outcome, profit)
	if err != nil {
		return fmt.Errorf("updating trade %s outcome: %w", tradeID, err)
	}
	return nil
}

// GetRecentTrades retrieves the latest trades, newest first
func (r *Repository) GetRecentTrades(ctx context.Context, limit int) ([]*Trade, error) {
	query := `
		SELECT id, trade_id, asset, amount, direction, expiration, outcome, profit, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade := &Trade{}
		err := rows.Scan(
			&trade.ID, &trade.TradeID, &trade.Asset, &trade.Amount, &trade.Direction,
			&trade.Expiration, &trade.Outcome, &trade.Profit, &trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// ============================================================================
// MARKET DATA
// ============================================================================

// SaveCandle stores one candle, ignoring duplicates for the same bar
func (r *Repository) SaveCandle(ctx context.Context, candle pocketoption.Candle) error {
	query := `
		INSERT INTO candles (asset, timeframe, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (asset, timeframe, timestamp) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		candle.Asset, candle.Timeframe, candle.Timestamp,
		candle.Open, candle.High, candle.Low, candle.Close, candle.Volume,
	)
	if err != nil {
		return fmt.Errorf("saving candle %s/%d: %w", candle.Asset, candle.Timeframe, err)
	}
	return nil
}

// SavePattern stores one detected pattern
func (r *Repository) SavePattern(ctx context.Context, asset string, timeframe int, match analysis.PatternMatch) error {
	query := `
		INSERT INTO patterns (name, pattern_type, asset, timeframe, timestamp, signal, strength)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		match.Pattern, match.Type, asset, timeframe, match.Timestamp, match.Signal, match.Strength,
	)
	if err != nil {
		return fmt.Errorf("saving pattern %s: %w", match.Pattern, err)
	}
	return nil
}

// SaveLevel stores one support/resistance level
func (r *Repository) SaveLevel(ctx context.Context, asset string, timeframe int, level analysis.Level) error {
	query := `
		INSERT INTO levels (asset, timeframe, level_type, price, strength)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query, asset, timeframe, level.Type, level.Price, level.Strength)
	if err != nil {
		return fmt.Errorf("saving level: %w", err)
	}
	return nil
}

// ============================================================================
// KNOWLEDGE
// ============================================================================

// SaveKnowledge stores one learned concept
func (r *Repository) SaveKnowledge(ctx context.Context, concept knowledge.Concept) error {
	query := `
		INSERT INTO learned_knowledge (source, keyword, category, content, summary, relevance_score)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		concept.Source, concept.Keyword, concept.Category,
		concept.Content, concept.Summary, concept.Relevance,
	)
	if err != nil {
		return fmt.Errorf("saving knowledge %q: %w", concept.Keyword, err)
	}
	return nil
}

// ListKnowledge loads all learned concepts, newest first
func (r *Repository) ListKnowledge(ctx context.Context) ([]knowledge.Concept, error) {
	query := `
		SELECT source, COALESCE(keyword, ''), category, content, COALESCE(summary, ''), COALESCE(relevance_score, 0)
		FROM learned_knowledge
		ORDER BY created_at DESC
	`
	return r.queryKnowledge(ctx, query)
}

// GetKnowledgeByContext loads concepts whose keyword appears in the
// given context string, capped at limit
func (r *Repository) GetKnowledgeByContext(ctx context.Context, marketContext string, limit int) ([]knowledge.Concept, error) {
	query := `
		SELECT source, COALESCE(keyword, ''), category, content, COALESCE(summary, ''), COALESCE(relevance_score, 0)
		FROM learned_knowledge
		WHERE keyword IS NOT NULL AND $1 ILIKE '%' || keyword || '%'
		ORDER BY relevance_score DESC
		LIMIT $2
	`
	return r.queryKnowledge(ctx, query, marketContext, limit)
}

func (r *Repository) queryKnowledge(ctx context.Context, query string, args ...interface{}) ([]knowledge.Concept, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []knowledge.Concept
	for rows.Next() {
		var c knowledge.Concept
		err := rows.Scan(&c.Source, &c.Keyword, &c.Category, &c.Content, &c.Summary, &c.Relevance)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}
