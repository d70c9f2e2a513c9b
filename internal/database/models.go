package database

import "time"

// Trade is a persisted binary-options trade. Outcome and Profit stay
// NULL until the trade settles.
type Trade struct {
	ID         int64     `json:"id"`
	TradeID    string    `json:"trade_id"`
	Asset      string    `json:"asset"`
	Amount     float64   `json:"amount"`
	Direction  string    `json:"direction"`
	Expiration int       `json:"expiration"`
	Outcome    *string   `json:"outcome,omitempty"`
	Profit     *float64  `json:"profit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LevelRecord is a persisted support/resistance level.
type LevelRecord struct {
	ID        int64     `json:"id"`
	Asset     string    `json:"asset"`
	Timeframe int       `json:"timeframe"`
	LevelType string    `json:"level_type"`
	Price     float64   `json:"price"`
	Strength  float64   `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}
