// Package pocketoption provides the connection to the Pocket Option
// venue. Two implementations exist: LiveClient speaks the websocket
// protocol with a real session, SimClient generates synthetic market
// data and settles trades randomly. The factory picks the simulation
// whenever no session ID is configured.
package pocketoption

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Common client errors.
var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrInvalidDirection = errors.New("trade direction must be CALL or PUT")
	ErrInvalidAmount    = errors.New("trade amount must be positive")
	ErrTradeNotFound    = errors.New("trade not found")
)

// Client is the venue interface the bot trades through.
type Client interface {
	// Connect establishes the venue session and loads the balance.
	Connect(ctx context.Context) error

	// Balance returns the balance reported by the venue at connect time.
	Balance() float64

	// IsConnected reports whether a session is established.
	IsConnected() bool

	// IsSimulation reports whether this client generates synthetic data.
	IsSimulation() bool

	// SubscribeCandles streams candles for one asset/timeframe pair,
	// invoking onCandle synchronously for each bar. It blocks until ctx
	// is cancelled or the stream fails.
	SubscribeCandles(ctx context.Context, asset string, timeframe int, onCandle CandleHandler) error

	// PlaceTrade opens a binary-options position. A returned ticket means
	// the venue accepted the trade; any error means it did not.
	PlaceTrade(ctx context.Context, asset string, amount float64, direction Direction, expiration int) (*TradeTicket, error)

	// CheckTradeOutcome polls the venue for a trade's result. The outcome
	// has Settled=false while the option is still open.
	CheckTradeOutcome(ctx context.Context, tradeID string) (*TradeOutcome, error)

	// GetTournaments lists tournaments currently visible on the venue.
	GetTournaments(ctx context.Context) ([]Tournament, error)

	// JoinTournament attempts to enter a tournament by ID.
	JoinTournament(ctx context.Context, id string) (bool, error)
}

// Config holds the venue connection settings.
type Config struct {
	SSID  string // session ID from an authenticated browser session
	Demo  bool   // demo account instead of real
	WSUrl string // websocket endpoint for the live client
}

// NewClient returns a live client when an SSID is configured and the
// simulated client otherwise. Live trading is impossible without a
// session, so an empty SSID always means simulation.
func NewClient(cfg Config, logger zerolog.Logger) Client {
	if cfg.SSID == "" {
		logger.Info().Msg("No SSID configured, using simulated venue client")
		return NewSimClient(cfg.Demo, logger)
	}
	return NewLiveClient(cfg, logger)
}
