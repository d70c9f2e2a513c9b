package pocketoption

// Direction is the side of a binary-options trade.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Candle is one OHLCV bar for an asset over a fixed time bucket.
// Candles are immutable once produced.
type Candle struct {
	Asset     string  `json:"asset"`
	Timeframe int     `json:"timeframe"` // seconds
	Timestamp int64   `json:"timestamp"` // unix seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low distance.
func (c Candle) Range() float64 { return c.High - c.Low }

// CandleHandler is invoked once per produced candle. The subscription
// loop calls it synchronously, so candle handling for one asset never
// overlaps with itself.
type CandleHandler func(Candle)

// TradeTicket is the venue's acknowledgement of a placed trade.
type TradeTicket struct {
	TradeID string `json:"trade_id"`
	Status  string `json:"status"` // always "pending" on acceptance
}

// TradeOutcome is the venue-reported result of a trade. Settled is false
// while the option has not expired yet.
type TradeOutcome struct {
	TradeID string `json:"trade_id"`
	Settled bool   `json:"settled"`
	Outcome string `json:"outcome"` // "win" or "loss" once settled
}

// Tournament describes a venue tournament.
type Tournament struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	EntryFee     float64 `json:"entry_fee"`
	PrizePool    float64 `json:"prize_pool"`
	Participants int     `json:"participants"`
	Status       string  `json:"status"` // "active", "invitation_open", ...
}

// IsFree reports whether the tournament can be entered without a fee
// and is currently open.
func (t Tournament) IsFree() bool {
	return t.EntryFee == 0 && (t.Status == "active" || t.Status == "invitation_open")
}
