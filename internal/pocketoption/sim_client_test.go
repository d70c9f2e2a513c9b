package pocketoption

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestSimClient(t *testing.T) *SimClient {
	t.Helper()
	c := NewSimClient(true, zerolog.Nop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c
}

func TestFactoryPicksSimWithoutSSID(t *testing.T) {
	client := NewClient(Config{SSID: "", Demo: true}, zerolog.Nop())
	if !client.IsSimulation() {
		t.Error("Should return simulated client when SSID is empty")
	}

	client = NewClient(Config{SSID: "abc123"}, zerolog.Nop())
	if client.IsSimulation() {
		t.Error("Should return live client when SSID is set")
	}
}

func TestSimConnectLoadsDemoBalance(t *testing.T) {
	c := newTestSimClient(t)

	if !c.IsConnected() {
		t.Error("Should be connected after Connect")
	}
	if c.Balance() != 10000 {
		t.Errorf("Should start with 10000 demo balance, got %.2f", c.Balance())
	}
}

func TestSimPlaceTradeValidation(t *testing.T) {
	c := NewSimClient(true, zerolog.Nop())
	ctx := context.Background()

	if _, err := c.PlaceTrade(ctx, "EURUSD_otc", 10, DirectionCall, 60); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Should reject trades before Connect, got %v", err)
	}

	c = newTestSimClient(t)
	if _, err := c.PlaceTrade(ctx, "EURUSD_otc", 10, Direction("SIDEWAYS"), 60); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Should reject invalid direction, got %v", err)
	}
	if _, err := c.PlaceTrade(ctx, "EURUSD_otc", -5, DirectionPut, 60); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Should reject non-positive amount, got %v", err)
	}
	if _, err := c.PlaceTrade(ctx, "EURUSD_otc", 50000, DirectionCall, 60); err == nil {
		t.Error("Should reject trades above the balance")
	}
}

func TestSimTradeSettlesAfterDelay(t *testing.T) {
	c := newTestSimClient(t)
	c.settleDelay = 20 * time.Millisecond
	ctx := context.Background()

	ticket, err := c.PlaceTrade(ctx, "EURUSD_otc", 10, DirectionCall, 60)
	if err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}
	if ticket.Status != "pending" {
		t.Errorf("Should return a pending ticket, got %q", ticket.Status)
	}

	outcome, err := c.CheckTradeOutcome(ctx, ticket.TradeID)
	if err != nil {
		t.Fatalf("CheckTradeOutcome failed: %v", err)
	}
	if outcome.Settled {
		t.Error("Should not settle before the delay elapses")
	}

	time.Sleep(30 * time.Millisecond)

	outcome, err = c.CheckTradeOutcome(ctx, ticket.TradeID)
	if err != nil {
		t.Fatalf("CheckTradeOutcome failed: %v", err)
	}
	if !outcome.Settled {
		t.Fatal("Should settle after the delay elapses")
	}
	if outcome.Outcome != "win" && outcome.Outcome != "loss" {
		t.Errorf("Should report win or loss, got %q", outcome.Outcome)
	}

	// Repeated polls return the same result.
	again, err := c.CheckTradeOutcome(ctx, ticket.TradeID)
	if err != nil {
		t.Fatalf("CheckTradeOutcome failed on re-poll: %v", err)
	}
	if again.Outcome != outcome.Outcome {
		t.Errorf("Should return a stable outcome, got %q then %q", outcome.Outcome, again.Outcome)
	}
}

func TestSimCheckUnknownTrade(t *testing.T) {
	c := newTestSimClient(t)
	if _, err := c.CheckTradeOutcome(context.Background(), "nope"); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("Should return ErrTradeNotFound for unknown trades, got %v", err)
	}
}

func TestSimSubscriptionStopsOnCancel(t *testing.T) {
	c := newTestSimClient(t)
	c.tickInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan Candle, 64)

	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeCandles(ctx, "EURUSD_otc", 60, func(candle Candle) {
			received <- candle
		})
	}()

	var first Candle
	select {
	case first = <-received:
	case <-time.After(time.Second):
		t.Fatal("Should receive a candle within a second")
	}
	if first.Asset != "EURUSD_otc" || first.Timeframe != 60 {
		t.Errorf("Should tag candles with asset and timeframe, got %s/%d", first.Asset, first.Timeframe)
	}
	if first.High < first.Low {
		t.Error("Should keep high at or above low")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Should return context.Canceled on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Should stop the subscription promptly after cancel")
	}
}

func TestSimTournaments(t *testing.T) {
	c := newTestSimClient(t)
	tournaments, err := c.GetTournaments(context.Background())
	if err != nil {
		t.Fatalf("GetTournaments failed: %v", err)
	}

	free := 0
	for _, tournament := range tournaments {
		if tournament.IsFree() {
			free++
		}
	}
	if free == 0 {
		t.Error("Should list at least one free tournament")
	}

	joined, err := c.JoinTournament(context.Background(), tournaments[0].ID)
	if err != nil || !joined {
		t.Errorf("Should join a listed tournament, got joined=%v err=%v", joined, err)
	}
}
