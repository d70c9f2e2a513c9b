// Package bot orchestrates the trading pipeline: it owns the bot
// state, runs the market feed, analysis, trade execution, resolution,
// tournament and learning tasks, and exposes the control surface the
// API layer calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pocket-options-bot/config"
	"pocket-options-bot/internal/agent"
	"pocket-options-bot/internal/analysis"
	"pocket-options-bot/internal/events"
	"pocket-options-bot/internal/knowledge"
	"pocket-options-bot/internal/pocketoption"
	"pocket-options-bot/internal/tournament"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Control-surface errors.
var (
	ErrAlreadyRunning   = errors.New("bot is already running")
	ErrNotRunning       = errors.New("bot is not running")
	ErrUnknownAsset     = errors.New("unknown asset")
	ErrInvalidTimeframe = errors.New("invalid timeframe")

	// ErrControlTimeout marks a control operation that hit its bounded
	// wait; the operation may be retried.
	ErrControlTimeout = errors.New("control operation timed out")
)

// Store is the narrow persistence interface the bot writes through.
// database.Repository implements it; a nil store disables persistence.
type Store interface {
	SaveTrade(ctx context.Context, tradeID, asset, direction string, amount float64, expiration int) error
	UpdateTradeOutcome(ctx context.Context, tradeID, outcome string, profit float64) error
	SaveCandle(ctx context.Context, candle pocketoption.Candle) error
	SavePattern(ctx context.Context, asset string, timeframe int, match analysis.PatternMatch) error
	SaveLevel(ctx context.Context, asset string, timeframe int, level analysis.Level) error
}

// Analysis window parameters.
const (
	minAnalysisWindow = 20
	levelSensitivity  = 3
	levelTolerance    = 0.0005
	levelCount        = 3
	trendPeriod       = 50
)

// assetAnalysis is the latest analysis snapshot for one asset.
type assetAnalysis struct {
	patterns   []analysis.PatternMatch
	levels     analysis.SRLevels
	indicators *analysis.IndicatorSet
}

// Bot is the trading bot orchestrator.
type Bot struct {
	cfg         *config.Config
	client      pocketoption.Client
	agent       *agent.Agent
	learner     *knowledge.Learner
	tournaments *tournament.Manager
	store       Store
	bus         *events.EventBus
	logger      zerolog.Logger

	mu               sync.RWMutex
	state            State
	tradingEnabled   bool
	balance          float64
	currentAsset     string
	currentTimeframe int
	minConfidence    float64
	marketData       map[string][]pocketoption.Candle
	snapshots        map[string]*assetAnalysis
	pending          map[string]*PendingTrade
	history          []SettledTrade

	cancelRun context.CancelFunc
	tasks     map[string]context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a stopped bot.
func New(cfg *config.Config, client pocketoption.Client, tradingAgent *agent.Agent,
	learner *knowledge.Learner, tournaments *tournament.Manager,
	store Store, bus *events.EventBus, logger zerolog.Logger) *Bot {

	return &Bot{
		cfg:              cfg,
		client:           client,
		agent:            tradingAgent,
		learner:          learner,
		tournaments:      tournaments,
		store:            store,
		bus:              bus,
		logger:           logger.With().Str("component", "bot").Logger(),
		state:            StateStopped,
		currentAsset:     cfg.TradingConfig.DefaultAsset,
		currentTimeframe: cfg.TradingConfig.DefaultTimeframe,
		minConfidence:    cfg.TradingConfig.MinConfidence,
		marketData:       make(map[string][]pocketoption.Candle),
		snapshots:        make(map[string]*assetAnalysis),
		pending:          make(map[string]*PendingTrade),
		tasks:            make(map[string]context.CancelFunc),
	}
}

// ===== LIFECYCLE =====

// Start connects to the venue and launches the background tasks. A
// connection failure returns the bot to Stopped.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateStopped {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.state = StateStarting
	b.mu.Unlock()

	b.logger.Info().Msg("Starting trading bot")

	connectCtx, cancel := context.WithTimeout(ctx, b.cfg.ControlTimeout())
	err := b.client.Connect(connectCtx)
	cancel()
	if err != nil {
		b.mu.Lock()
		b.state = StateStopped
		b.mu.Unlock()
		b.bus.PublishError("bot", "venue connection failed", err)
		return fmt.Errorf("connecting to venue: %w", err)
	}

	// The run context outlives the Start caller; tasks stop via Stop.
	runCtx, cancelRun := context.WithCancel(context.Background())

	b.mu.Lock()
	b.balance = b.client.Balance()
	b.cancelRun = cancelRun

	for _, asset := range b.cfg.TradingConfig.Assets {
		asset := asset
		b.spawnTask(runCtx, "candles_"+asset, func(taskCtx context.Context) {
			b.feedLoop(taskCtx, asset)
		})
	}
	b.spawnTask(runCtx, "resolver", b.resolutionLoop)
	if b.cfg.TournamentConfig.Enabled {
		b.spawnTask(runCtx, "tournament", b.tournamentLoop)
	}
	if b.cfg.LearningConfig.Enabled {
		b.spawnTask(runCtx, "learner", b.learnerLoop)
	}

	b.state = StateRunning
	b.mu.Unlock()

	b.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"simulation": b.client.IsSimulation(),
		"balance":    b.client.Balance(),
	}})
	b.logger.Info().Bool("simulation", b.client.IsSimulation()).
		Float64("balance", b.client.Balance()).Msg("Trading bot running")
	return nil
}

// spawnTask registers and launches one named background task. Caller
// holds b.mu.
func (b *Bot) spawnTask(runCtx context.Context, name string, run func(context.Context)) {
	taskCtx, cancel := context.WithCancel(runCtx)
	b.tasks[name] = cancel
	b.wg.Add(1)

	logger := b.logger.With().Str("task", name).Logger()
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("Task panicked")
				b.bus.PublishError("bot", fmt.Sprintf("task %s panicked", name), nil)
			}
		}()
		logger.Debug().Msg("Task started")
		run(taskCtx)
		logger.Debug().Msg("Task stopped")
	}()
}

// Stop cancels every task, waits for them to finish and clears the
// registry.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if b.state != StateRunning {
		b.mu.Unlock()
		return ErrNotRunning
	}
	b.state = StateStopping
	cancelRun := b.cancelRun
	b.mu.Unlock()

	b.logger.Info().Msg("Stopping trading bot")
	cancelRun()
	b.wg.Wait()

	b.mu.Lock()
	b.tasks = make(map[string]context.CancelFunc)
	b.cancelRun = nil
	b.state = StateStopped
	b.mu.Unlock()

	b.bus.Publish(events.Event{Type: events.EventBotStopped})
	b.logger.Info().Msg("Trading bot stopped")
	return nil
}

// State returns the current lifecycle state.
func (b *Bot) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// TaskNames lists the registered background tasks.
func (b *Bot) TaskNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.tasks))
	for name := range b.tasks {
		names = append(names, name)
	}
	return names
}

// ===== BACKGROUND TASKS =====

// feedLoop streams candles for one asset at the timeframe active when
// the bot started. Candle handling runs synchronously inside the
// subscription, so analysis for one asset never overlaps with itself.
func (b *Bot) feedLoop(ctx context.Context, asset string) {
	b.mu.RLock()
	timeframe := b.currentTimeframe
	b.mu.RUnlock()

	err := b.client.SubscribeCandles(ctx, asset, timeframe, func(candle pocketoption.Candle) {
		b.onCandle(ctx, candle)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error().Err(err).Str("asset", asset).Msg("Candle feed failed")
		b.bus.PublishError("bot", "candle feed failed for "+asset, err)
	}
}

// onCandle ingests one candle, refreshes the analysis snapshot for the
// asset and, when trading is enabled, may open a trade.
func (b *Bot) onCandle(ctx context.Context, candle pocketoption.Candle) {
	b.mu.Lock()
	window := append([]pocketoption.Candle{candle}, b.marketData[candle.Asset]...)
	if len(window) > b.cfg.TradingConfig.CandleWindowSize {
		window = window[:b.cfg.TradingConfig.CandleWindowSize]
	}
	b.marketData[candle.Asset] = window
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.SaveCandle(ctx, candle); err != nil {
			b.logger.Warn().Err(err).Msg("Candle not persisted")
		}
	}

	if len(window) < minAnalysisWindow {
		return
	}

	patterns := analysis.AnalyzeCandles(window)
	indicators := analysis.CalculateIndicators(window)
	levels := analysis.FindSupportResistance(window, levelSensitivity, levelTolerance, levelCount)

	b.mu.Lock()
	b.snapshots[candle.Asset] = &assetAnalysis{
		patterns:   patterns,
		levels:     levels,
		indicators: indicators,
	}
	tradingEnabled := b.tradingEnabled
	minConfidence := b.minConfidence
	b.mu.Unlock()

	// Only patterns on the freshest candle are persisted; older matches
	// were recorded when their candle arrived.
	if b.store != nil {
		freshPattern := false
		for _, match := range patterns {
			if match.CandleIndex != 0 {
				continue
			}
			freshPattern = true
			if err := b.store.SavePattern(ctx, candle.Asset, candle.Timeframe, match); err != nil {
				b.logger.Warn().Err(err).Msg("Pattern not persisted")
			}
		}
		if freshPattern {
			for _, level := range append(levels.Support, levels.Resistance...) {
				if err := b.store.SaveLevel(ctx, candle.Asset, candle.Timeframe, level); err != nil {
					b.logger.Warn().Err(err).Msg("Level not persisted")
				}
			}
		}
	}

	if !tradingEnabled {
		return
	}

	decision := b.agent.GenerateSignal(agent.SignalContext{
		Candles:    window,
		Patterns:   patterns,
		Levels:     levels,
		Indicators: indicators,
		Knowledge:  b.relevantKnowledge(ctx, candle.Asset, indicators),
	})

	if decision.Direction == agent.DirectionHold {
		return
	}
	b.bus.PublishSignal(candle.Asset, decision.Direction, decision.Confidence, decision.Reasoning)

	if decision.Confidence >= minConfidence {
		b.executeTrade(ctx, candle.Asset, decision)
	}
}

// relevantKnowledge builds a keyword context from the market picture.
func (b *Bot) relevantKnowledge(ctx context.Context, asset string, indicators *analysis.IndicatorSet) []knowledge.Concept {
	if b.learner == nil {
		return nil
	}
	marketContext := asset
	if indicators != nil && indicators.Bollinger != nil {
		marketContext += " bollinger bands"
	}
	return b.learner.RelevantKnowledge(ctx, marketContext)
}

// resolutionLoop sweeps pending trades on a fixed interval.
func (b *Bot) resolutionLoop(ctx context.Context) {
	interval := time.Duration(b.cfg.TradingConfig.ResolveInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.resolveTrades(ctx)
		}
	}
}

// tournamentLoop wakes hourly and delegates to the tournament manager,
// which enforces its own attempt gate. The loop always re-arms.
func (b *Bot) tournamentLoop(ctx context.Context) {
	// Let the connection settle before the first attempt.
	select {
	case <-ctx.Done():
		return
	case <-time.After(30 * time.Second):
	}

	wake := time.Duration(b.cfg.TournamentConfig.WakeInterval) * time.Second
	for {
		if id, err := b.tournaments.JoinDailyFree(ctx); err != nil {
			b.logger.Error().Err(err).Msg("Tournament join attempt failed")
		} else if id != "" {
			b.bus.PublishTournamentJoined(id)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wake):
		}
	}
}

// learnerLoop refreshes the knowledge cache periodically.
func (b *Bot) learnerLoop(ctx context.Context) {
	interval := time.Duration(b.cfg.LearningConfig.RefreshInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.learner.Refresh(ctx); err != nil {
				b.logger.Error().Err(err).Msg("Knowledge refresh failed")
			}
		}
	}
}

// ===== CONTROL SURFACE =====

// SetTradingEnabled toggles signal-driven trade execution.
func (b *Bot) SetTradingEnabled(enabled bool) {
	b.mu.Lock()
	b.tradingEnabled = enabled
	b.mu.Unlock()
	b.logger.Info().Bool("enabled", enabled).Msg("Trading toggled")
}

// SetMinConfidence updates the execution threshold, clamped to
// [0.5, 0.95]. Returns the applied value.
func (b *Bot) SetMinConfidence(v float64) float64 {
	if v < 0.5 {
		v = 0.5
	}
	if v > 0.95 {
		v = 0.95
	}
	b.mu.Lock()
	b.minConfidence = v
	b.mu.Unlock()
	b.logger.Info().Float64("min_confidence", v).Msg("Minimum confidence updated")
	return v
}

// SetActiveAsset switches the asset served by status and analysis
// endpoints. The asset must be one of the configured assets.
func (b *Bot) SetActiveAsset(asset string) error {
	known := false
	for _, a := range b.cfg.TradingConfig.Assets {
		if a == asset {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	b.mu.Lock()
	b.currentAsset = asset
	b.mu.Unlock()
	return nil
}

// SetActiveTimeframe switches the active candle interval. Takes effect
// for feeds on the next start.
func (b *Bot) SetActiveTimeframe(tf int) error {
	if !config.ValidTimeframe(tf) {
		return fmt.Errorf("%w: %d", ErrInvalidTimeframe, tf)
	}

	b.mu.Lock()
	b.currentTimeframe = tf
	b.mu.Unlock()
	return nil
}

// ActiveMarket returns the asset and timeframe the status and analysis
// endpoints currently serve.
func (b *Bot) ActiveMarket() (string, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentAsset, b.currentTimeframe
}

// JoinTournament joins a tournament by ID with a bounded wait.
func (b *Bot) JoinTournament(ctx context.Context, id string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.cfg.ControlTimeout())
	defer cancel()

	joined, err := b.tournaments.JoinByID(opCtx, id)
	if err != nil {
		return false, mapTimeout(err)
	}
	if joined {
		b.bus.PublishTournamentJoined(id)
	}
	return joined, nil
}

// FreeTournaments lists joinable free tournaments with a bounded wait.
func (b *Bot) FreeTournaments(ctx context.Context) ([]pocketoption.Tournament, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.cfg.ControlTimeout())
	defer cancel()

	tournaments, err := b.tournaments.FreeTournaments(opCtx)
	if err != nil {
		return nil, mapTimeout(err)
	}
	return tournaments, nil
}

// mapTimeout converts a context deadline into the retryable control
// timeout error.
func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrControlTimeout
	}
	return err
}
