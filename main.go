package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pocket-options-bot/config"
	"pocket-options-bot/internal/agent"
	"pocket-options-bot/internal/api"
	"pocket-options-bot/internal/bot"
	"pocket-options-bot/internal/cache"
	"pocket-options-bot/internal/database"
	"pocket-options-bot/internal/events"
	"pocket-options-bot/internal/knowledge"
	"pocket-options-bot/internal/logging"
	"pocket-options-bot/internal/pocketoption"
	"pocket-options-bot/internal/tournament"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("Pocket options bot starting")

	eventBus := events.NewEventBus()

	// Database is optional: without it the bot runs memory-only.
	var repo *database.Repository
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Database unavailable, running without persistence")
	} else {
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			log.Fatalf("Failed to run migrations: %v", err)
		}
		cancel()
		repo = database.NewRepository(db)
	}

	// Redis cache is optional; the API falls back to in-memory state.
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache unavailable, serving from bot state")
		} else {
			defer cacheService.Close()
		}
	}

	client := pocketoption.NewClient(pocketoption.Config{
		SSID:  cfg.PocketOptionConfig.SSID,
		Demo:  cfg.PocketOptionConfig.Demo,
		WSUrl: cfg.PocketOptionConfig.WSUrl,
	}, logger)
	if client.IsSimulation() {
		logger.Info().Msg("No venue session configured, running in simulation mode")
	}

	tradingAgent := agent.New(nil, logger)

	var knowledgeStore knowledge.Store
	if repo != nil {
		knowledgeStore = repo
	}
	learner := knowledge.NewLearner(knowledgeStore, logger)
	if repo != nil {
		if err := learner.Refresh(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Knowledge preload failed")
		}
	}

	tournaments := tournament.NewManager(client,
		time.Duration(cfg.TournamentConfig.CheckInterval)*time.Second, logger)

	var store bot.Store
	if repo != nil {
		store = repo
	}
	tradingBot := bot.New(cfg, client, tradingAgent, learner, tournaments, store, eventBus, logger)

	var snapshots api.SnapshotCache
	if cacheService != nil {
		snapshots = cacheService
	}
	server := api.NewServer(cfg, tradingBot, eventBus, snapshots, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// The bot starts via the API; start immediately only in simulation
	// so a fresh checkout produces data out of the box.
	if client.IsSimulation() {
		if err := tradingBot.Start(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Initial bot start failed")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received")

	if tradingBot.State() == bot.StateRunning {
		if err := tradingBot.Stop(); err != nil {
			logger.Error().Err(err).Msg("Bot shutdown failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API shutdown failed")
	}

	logger.Info().Msg("Pocket options bot stopped")
}
