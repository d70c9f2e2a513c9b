package pocketoption

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	demoStartBalance = 10000.0
	simSettleDelay   = 5 * time.Second
)

// basePrices seed the random walk per asset so charts look plausible.
var basePrices = map[string]float64{
	"EURUSD_otc": 1.0850,
	"GBPUSD_otc": 1.2650,
	"USDJPY_otc": 149.50,
	"AUDUSD_otc": 0.6550,
	"USDCAD_otc": 1.3600,
	"EURGBP_otc": 0.8580,
	"EURJPY_otc": 162.20,
	"GBPJPY_otc": 189.10,
}

type simTrade struct {
	asset      string
	amount     float64
	direction  Direction
	openedAt   time.Time
	expiration time.Duration
}

// SimClient is a self-contained venue simulation. Prices follow a
// bounded random walk, trades settle randomly after a short delay.
type SimClient struct {
	mu        sync.Mutex
	demo      bool
	connected bool
	balance   float64
	prices    map[string]float64
	trades    map[string]simTrade
	outcomes  map[string]string
	rng       *rand.Rand
	logger    zerolog.Logger

	// tickInterval overrides the candle cadence; zero means one candle
	// per timeframe. Tests compress time through this.
	tickInterval time.Duration
	// settleDelay overrides how long a trade stays pending at the venue.
	settleDelay time.Duration
}

var _ Client = (*SimClient)(nil)

// NewSimClient creates a simulated venue client.
func NewSimClient(demo bool, logger zerolog.Logger) *SimClient {
	prices := make(map[string]float64, len(basePrices))
	for asset, p := range basePrices {
		prices[asset] = p
	}
	return &SimClient{
		demo:        demo,
		prices:      prices,
		trades:      make(map[string]simTrade),
		outcomes:    make(map[string]string),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		settleDelay: simSettleDelay,
		logger:      logger.With().Str("component", "sim_client").Logger(),
	}
}

func (c *SimClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.balance = demoStartBalance
	c.logger.Info().Float64("balance", c.balance).Bool("demo", c.demo).
		Msg("Simulated venue session established")
	return nil
}

func (c *SimClient) Balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

func (c *SimClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *SimClient) IsSimulation() bool { return true }

// SubscribeCandles emits one synthetic candle per interval until ctx is
// cancelled. Unknown assets start at 1.0 rather than failing, so the
// simulation never rejects a subscription.
func (c *SimClient) SubscribeCandles(ctx context.Context, asset string, timeframe int, onCandle CandleHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	interval := c.tickInterval
	if interval <= 0 {
		interval = time.Duration(timeframe) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			onCandle(c.nextCandle(asset, timeframe))
		}
	}
}

// nextCandle advances the random walk one step and builds an OHLCV bar
// around the move.
func (c *SimClient) nextCandle(asset string, timeframe int) Candle {
	c.mu.Lock()
	defer c.mu.Unlock()

	open, ok := c.prices[asset]
	if !ok {
		open = 1.0
	}

	// Bounded walk: +-0.15% per bar with a little extra wick noise.
	change := (c.rng.Float64() - 0.5) * 0.003
	closePrice := open * (1 + change)
	high := maxFloat(open, closePrice) * (1 + c.rng.Float64()*0.0005)
	low := minFloat(open, closePrice) * (1 - c.rng.Float64()*0.0005)
	c.prices[asset] = closePrice

	return Candle{
		Asset:     asset,
		Timeframe: timeframe,
		Timestamp: time.Now().Unix(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    100 + c.rng.Float64()*900,
	}
}

func (c *SimClient) PlaceTrade(ctx context.Context, asset string, amount float64, direction Direction, expiration int) (*TradeTicket, error) {
	if direction != DirectionCall && direction != DirectionPut {
		return nil, ErrInvalidDirection
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	if amount > c.balance {
		return nil, fmt.Errorf("insufficient balance: have %.2f, need %.2f", c.balance, amount)
	}

	id := uuid.NewString()
	c.trades[id] = simTrade{
		asset:      asset,
		amount:     amount,
		direction:  direction,
		openedAt:   time.Now(),
		expiration: time.Duration(expiration) * time.Second,
	}
	c.logger.Debug().Str("trade_id", id).Str("asset", asset).
		Float64("amount", amount).Str("direction", string(direction)).
		Int("expiration", expiration).Msg("Simulated trade placed")

	return &TradeTicket{TradeID: id, Status: "pending"}, nil
}

// CheckTradeOutcome settles a simulated trade once the settle delay has
// elapsed. The outcome is drawn once and then remembered, so repeated
// polls for the same trade return the same result.
func (c *SimClient) CheckTradeOutcome(ctx context.Context, tradeID string) (*TradeOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome, ok := c.outcomes[tradeID]; ok {
		return &TradeOutcome{TradeID: tradeID, Settled: true, Outcome: outcome}, nil
	}

	trade, ok := c.trades[tradeID]
	if !ok {
		return nil, ErrTradeNotFound
	}
	if time.Since(trade.openedAt) <= c.settleDelay {
		return &TradeOutcome{TradeID: tradeID, Settled: false}, nil
	}

	outcome := "loss"
	if c.rng.Float64() < 0.5 {
		outcome = "win"
	}
	c.outcomes[tradeID] = outcome
	delete(c.trades, tradeID)

	return &TradeOutcome{TradeID: tradeID, Settled: true, Outcome: outcome}, nil
}

func (c *SimClient) GetTournaments(ctx context.Context) ([]Tournament, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	return []Tournament{
		{ID: "daily-free", Name: "Daily Free Tournament", EntryFee: 0, PrizePool: 250, Participants: 1200, Status: "active"},
		{ID: "weekly-free", Name: "Weekly Free", EntryFee: 0, PrizePool: 1000, Participants: 4800, Status: "invitation_open"},
		{ID: "pro-100", Name: "Pro Battle", EntryFee: 100, PrizePool: 50000, Participants: 300, Status: "active"},
	}, nil
}

func (c *SimClient) JoinTournament(ctx context.Context, id string) (bool, error) {
	if !c.IsConnected() {
		return false, ErrNotConnected
	}
	c.logger.Info().Str("tournament_id", id).Msg("Joined simulated tournament")
	return true, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
