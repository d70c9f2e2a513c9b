package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pocket-options-bot/config"
	"pocket-options-bot/internal/bot"
	"pocket-options-bot/internal/cache"
	"pocket-options-bot/internal/events"
	"pocket-options-bot/internal/pocketoption"
)

type fakeController struct {
	started        bool
	stopped        bool
	trading        bool
	minConfidence  float64
	asset          string
	timeframe      int
	joinedID       string
	startErr       error
	joinErr        error
	tournamentsErr error
}

func (f *fakeController) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeController) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeController) SetTradingEnabled(enabled bool) { f.trading = enabled }

func (f *fakeController) SetMinConfidence(v float64) float64 {
	if v < 0.5 {
		v = 0.5
	}
	if v > 0.95 {
		v = 0.95
	}
	f.minConfidence = v
	return v
}

func (f *fakeController) SetActiveAsset(asset string) error {
	if asset != "EURUSD_otc" && asset != "GBPUSD_otc" {
		return bot.ErrUnknownAsset
	}
	f.asset = asset
	return nil
}

func (f *fakeController) SetActiveTimeframe(tf int) error {
	if tf != 60 && tf != 300 {
		return bot.ErrInvalidTimeframe
	}
	f.timeframe = tf
	return nil
}

func (f *fakeController) ActiveMarket() (string, int) { return "EURUSD_otc", 60 }

func (f *fakeController) Status() bot.Status {
	return bot.Status{IsRunning: f.started, CurrentAsset: "EURUSD_otc", CurrentTimeframe: 60, Balance: 10000}
}

func (f *fakeController) MarketAnalysis() bot.MarketAnalysis {
	return bot.MarketAnalysis{Asset: "EURUSD_otc", Timeframe: 60, Trend: "uptrend"}
}

func (f *fakeController) TradeStats() bot.TradeStats {
	return bot.TradeStats{TotalTrades: 4, TotalWins: 3, TotalLosses: 1, WinRate: 0.75}
}

func (f *fakeController) JoinTournament(ctx context.Context, id string) (bool, error) {
	if f.joinErr != nil {
		return false, f.joinErr
	}
	f.joinedID = id
	return true, nil
}

func (f *fakeController) FreeTournaments(ctx context.Context) ([]pocketoption.Tournament, error) {
	if f.tournamentsErr != nil {
		return nil, f.tournamentsErr
	}
	return []pocketoption.Tournament{{ID: "daily-free", Name: "Daily Free Tournament"}}, nil
}

// fakeCache is an in-memory SnapshotCache double.
type fakeCache struct {
	healthy bool
	entries map[string][]byte
	gets    int
	sets    int
	deletes int
}

func newFakeCache(healthy bool) *fakeCache {
	return &fakeCache{healthy: healthy, entries: make(map[string][]byte)}
}

func (f *fakeCache) IsHealthy() bool { return f.healthy }

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	f.gets++
	data, ok := f.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.sets++
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.deletes++
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) GetStats() cache.Stats { return cache.Stats{Healthy: f.healthy} }

func newTestServer(controller BotController) *Server {
	return newTestServerWithCache(controller, nil)
}

func newTestServerWithCache(controller BotController, snapshots SnapshotCache) *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		ServerConfig: config.ServerConfig{
			Port: 5000, Host: "127.0.0.1", AllowedOrigins: "*", ControlTimeout: 10,
		},
	}
	return NewServer(cfg, controller, events.NewEventBus(), snapshots, zerolog.Nop())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Health should return 200, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(&fakeController{started: true})

	w := doJSON(t, s, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status should return 200, got %d", w.Code)
	}

	var status bot.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.IsRunning || status.Balance != 10000 {
		t.Errorf("Status body should carry bot state, got %+v", status)
	}
}

func TestControlStartStop(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	if w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "start"}); w.Code != http.StatusOK {
		t.Errorf("start should return 200, got %d", w.Code)
	}
	if !ctrl.started {
		t.Error("start action should reach the controller")
	}

	if w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "stop"}); w.Code != http.StatusOK {
		t.Errorf("stop should return 200, got %d", w.Code)
	}
	if !ctrl.stopped {
		t.Error("stop action should reach the controller")
	}
}

func TestControlTradingToggle(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "start_trading"})
	if !ctrl.trading {
		t.Error("start_trading should enable trading")
	}

	doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "stop_trading"})
	if ctrl.trading {
		t.Error("stop_trading should disable trading")
	}
}

func TestControlUnknownActionRejected(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "self_destruct"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown action should return 400, got %d", w.Code)
	}
}

func TestControlMissingActionRejected(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing action should return 400, got %d", w.Code)
	}
}

func TestJoinTournamentRequiresID(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "join_tournament"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing tournament_id should return 400, got %d", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "join_tournament", "tournament_id": "daily-free"})
	if w.Code != http.StatusOK {
		t.Errorf("Valid join should return 200, got %d", w.Code)
	}
	if ctrl.joinedID != "daily-free" {
		t.Errorf("Join should reach the controller, got %q", ctrl.joinedID)
	}
}

func TestControlTimeoutMapsTo504(t *testing.T) {
	ctrl := &fakeController{joinErr: bot.ErrControlTimeout}
	s := newTestServer(ctrl)

	w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "join_tournament", "tournament_id": "daily-free"})
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("Control timeout should return 504, got %d", w.Code)
	}
}

func TestLifecycleConflictMapsTo409(t *testing.T) {
	ctrl := &fakeController{startErr: bot.ErrAlreadyRunning}
	s := newTestServer(ctrl)

	w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "start"})
	if w.Code != http.StatusConflict {
		t.Errorf("Already-running should return 409, got %d", w.Code)
	}
}

func TestSettingsMinConfidence(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"min_confidence": 0.99})
	if w.Code != http.StatusOK {
		t.Fatalf("Setting should return 200, got %d", w.Code)
	}
	if ctrl.minConfidence != 0.95 {
		t.Errorf("Applied value should be clamped to 0.95, got %.2f", ctrl.minConfidence)
	}

	var resp map[string]float64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["min_confidence"] != 0.95 {
		t.Errorf("Response should echo the applied value, got %v", resp)
	}
}

func TestSettingsAssetValidation(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	if w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"current_asset": "GBPUSD_otc"}); w.Code != http.StatusOK {
		t.Errorf("Known asset should return 200, got %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"current_asset": "DOGEUSD"}); w.Code != http.StatusBadRequest {
		t.Errorf("Unknown asset should return 400, got %d", w.Code)
	}
}

func TestSettingsTimeframeValidation(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	if w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"current_timeframe": 300}); w.Code != http.StatusOK {
		t.Errorf("Supported timeframe should return 200, got %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"current_timeframe": 42}); w.Code != http.StatusBadRequest {
		t.Errorf("Unsupported timeframe should return 400, got %d", w.Code)
	}
}

func TestSettingsUnknownRejected(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodPost, "/api/settings", gin.H{"favorite_color": "green"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unrecognized setting should return 400, got %d", w.Code)
	}
}

func TestFreeTournamentsEndpoint(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodGet, "/api/tournaments/free", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Tournaments should return 200, got %d", w.Code)
	}

	var resp struct {
		Tournaments []pocketoption.Tournament `json:"tournaments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tournaments) != 1 || resp.Tournaments[0].ID != "daily-free" {
		t.Errorf("Expected the daily free tournament, got %+v", resp.Tournaments)
	}
}

func TestMarketAnalysisEndpoint(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodGet, "/api/market/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Analysis should return 200, got %d", w.Code)
	}

	var analysis bot.MarketAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatal(err)
	}
	if analysis.Asset != "EURUSD_otc" || analysis.Trend != "uptrend" {
		t.Errorf("Analysis body should carry bot state, got %+v", analysis)
	}
}

func TestMarketAnalysisServedFromCache(t *testing.T) {
	snapshots := newFakeCache(true)
	cached := bot.MarketAnalysis{Asset: "EURUSD_otc", Timeframe: 60, Trend: "downtrend"}
	if err := snapshots.SetJSON(context.Background(), cache.MarketAnalysisKey("EURUSD_otc", 60), cached, time.Minute); err != nil {
		t.Fatal(err)
	}
	s := newTestServerWithCache(&fakeController{}, snapshots)

	w := doJSON(t, s, http.MethodGet, "/api/market/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Analysis should return 200, got %d", w.Code)
	}

	var analysis bot.MarketAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatal(err)
	}
	// The controller reports "uptrend"; "downtrend" proves the cached
	// snapshot was served.
	if analysis.Trend != "downtrend" {
		t.Errorf("Healthy cache hit should serve the cached snapshot, got trend %q", analysis.Trend)
	}
	if snapshots.gets != 1 {
		t.Errorf("Handler should read through the cache, got %d reads", snapshots.gets)
	}
}

func TestMarketAnalysisMissFallsBackAndCaches(t *testing.T) {
	snapshots := newFakeCache(true)
	s := newTestServerWithCache(&fakeController{}, snapshots)

	w := doJSON(t, s, http.MethodGet, "/api/market/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Analysis should return 200, got %d", w.Code)
	}

	var analysis bot.MarketAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatal(err)
	}
	if analysis.Trend != "uptrend" {
		t.Errorf("Cache miss should fall back to bot state, got trend %q", analysis.Trend)
	}
	if _, ok := snapshots.entries[cache.MarketAnalysisKey("EURUSD_otc", 60)]; !ok {
		t.Error("Fallback response should be written back to the cache")
	}
}

func TestMarketAnalysisSkipsUnhealthyCache(t *testing.T) {
	snapshots := newFakeCache(false)
	s := newTestServerWithCache(&fakeController{}, snapshots)

	w := doJSON(t, s, http.MethodGet, "/api/market/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Analysis should return 200, got %d", w.Code)
	}
	if snapshots.gets != 0 || snapshots.sets != 0 {
		t.Errorf("Unhealthy cache should not be touched, got %d reads %d writes", snapshots.gets, snapshots.sets)
	}
}

func TestControlInvalidatesStatusSnapshot(t *testing.T) {
	snapshots := newFakeCache(true)
	s := newTestServerWithCache(&fakeController{}, snapshots)

	// Prime the cached status, then change state through a control
	// action; the next status read must reflect the new state.
	if w := doJSON(t, s, http.MethodGet, "/api/status", nil); w.Code != http.StatusOK {
		t.Fatalf("Status should return 200, got %d", w.Code)
	}
	if _, ok := snapshots.entries[cache.BotStatusKey()]; !ok {
		t.Fatal("Status read should populate the cache")
	}

	if w := doJSON(t, s, http.MethodPost, "/api/control", gin.H{"action": "start"}); w.Code != http.StatusOK {
		t.Fatalf("start should return 200, got %d", w.Code)
	}
	if _, ok := snapshots.entries[cache.BotStatusKey()]; ok {
		t.Fatal("Control action should drop the cached status snapshot")
	}

	w := doJSON(t, s, http.MethodGet, "/api/status", nil)
	var status bot.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.IsRunning {
		t.Error("Status after start should report running, not the stale snapshot")
	}
}

func TestTradeHistoryEndpoint(t *testing.T) {
	s := newTestServer(&fakeController{})

	w := doJSON(t, s, http.MethodGet, "/api/trades/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("History should return 200, got %d", w.Code)
	}

	var stats bot.TradeStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrades != 4 || stats.WinRate != 0.75 {
		t.Errorf("History body should carry trade stats, got %+v", stats)
	}
}
