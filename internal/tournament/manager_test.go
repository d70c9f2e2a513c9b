package tournament

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pocket-options-bot/internal/pocketoption"
)

// fakeClient is a minimal venue stub for tournament tests.
type fakeClient struct {
	tournaments []pocketoption.Tournament
	listCalls   int
	joinCalls   int
	joinResult  bool
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Balance() float64                  { return 10000 }
func (f *fakeClient) IsConnected() bool                 { return true }
func (f *fakeClient) IsSimulation() bool                { return true }

func (f *fakeClient) SubscribeCandles(ctx context.Context, asset string, timeframe int, onCandle pocketoption.CandleHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeClient) PlaceTrade(ctx context.Context, asset string, amount float64, direction pocketoption.Direction, expiration int) (*pocketoption.TradeTicket, error) {
	return nil, pocketoption.ErrNotConnected
}

func (f *fakeClient) CheckTradeOutcome(ctx context.Context, tradeID string) (*pocketoption.TradeOutcome, error) {
	return nil, pocketoption.ErrTradeNotFound
}

func (f *fakeClient) GetTournaments(ctx context.Context) ([]pocketoption.Tournament, error) {
	f.listCalls++
	return f.tournaments, nil
}

func (f *fakeClient) JoinTournament(ctx context.Context, id string) (bool, error) {
	f.joinCalls++
	return f.joinResult, nil
}

func testTournaments() []pocketoption.Tournament {
	return []pocketoption.Tournament{
		{ID: "t1", Name: "Daily Free Tournament", EntryFee: 0, Status: "active"},
		{ID: "t2", Name: "Pro Battle", EntryFee: 100, Status: "active"},
		{ID: "t3", Name: "Weekly Free", EntryFee: 0, Status: "finished"},
	}
}

func TestFreeTournamentsFilter(t *testing.T) {
	client := &fakeClient{tournaments: testTournaments()}
	m := NewManager(client, time.Hour, zerolog.Nop())

	free, err := m.FreeTournaments(context.Background())
	if err != nil {
		t.Fatalf("FreeTournaments failed: %v", err)
	}
	if len(free) != 1 {
		t.Fatalf("Should keep only active zero-fee tournaments, got %d", len(free))
	}
	if free[0].ID != "t1" {
		t.Errorf("Should keep the daily free tournament, got %q", free[0].ID)
	}
}

func TestJoinDailyFree(t *testing.T) {
	client := &fakeClient{tournaments: testTournaments(), joinResult: true}
	m := NewManager(client, time.Hour, zerolog.Nop())

	id, err := m.JoinDailyFree(context.Background())
	if err != nil {
		t.Fatalf("JoinDailyFree failed: %v", err)
	}
	if id != "t1" {
		t.Errorf("Should join the daily free tournament, got %q", id)
	}
	if !m.Joined() {
		t.Error("Should record the joined state")
	}
}

func TestJoinDailyFreeGatesAttempts(t *testing.T) {
	client := &fakeClient{tournaments: testTournaments(), joinResult: true}
	m := NewManager(client, time.Hour, zerolog.Nop())

	if _, err := m.JoinDailyFree(context.Background()); err != nil {
		t.Fatalf("JoinDailyFree failed: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("Should hit the venue on the first attempt, got %d calls", client.listCalls)
	}

	// Second wake-up inside the gate must not touch the venue.
	id, err := m.JoinDailyFree(context.Background())
	if err != nil {
		t.Fatalf("JoinDailyFree failed: %v", err)
	}
	if id != "" {
		t.Errorf("Should skip the attempt inside the gate, got %q", id)
	}
	if client.listCalls != 1 || client.joinCalls != 1 {
		t.Errorf("Should not call the venue inside the gate, got list=%d join=%d",
			client.listCalls, client.joinCalls)
	}
}

func TestJoinDailyFreeGateAdvancesOnFailure(t *testing.T) {
	client := &fakeClient{tournaments: testTournaments(), joinResult: false}
	m := NewManager(client, time.Hour, zerolog.Nop())

	id, err := m.JoinDailyFree(context.Background())
	if err != nil {
		t.Fatalf("JoinDailyFree failed: %v", err)
	}
	if id != "" || m.Joined() {
		t.Error("Should report not joined when the venue refuses")
	}

	// The gate still advanced, so the next wake-up is skipped.
	if _, err := m.JoinDailyFree(context.Background()); err != nil {
		t.Fatalf("JoinDailyFree failed: %v", err)
	}
	if client.joinCalls != 1 {
		t.Errorf("Should not retry inside the gate after a refusal, got %d join calls", client.joinCalls)
	}
}
