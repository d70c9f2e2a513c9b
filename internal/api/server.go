// Package api exposes the bot's control surface over HTTP and streams
// bot events to dashboard clients over a websocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pocket-options-bot/config"
	"pocket-options-bot/internal/bot"
	"pocket-options-bot/internal/cache"
	"pocket-options-bot/internal/events"
	"pocket-options-bot/internal/pocketoption"
)

// BotController defines what the API layer needs from the bot.
type BotController interface {
	Start(ctx context.Context) error
	Stop() error
	SetTradingEnabled(enabled bool)
	SetMinConfidence(v float64) float64
	SetActiveAsset(asset string) error
	SetActiveTimeframe(tf int) error
	ActiveMarket() (asset string, timeframe int)
	Status() bot.Status
	MarketAnalysis() bot.MarketAnalysis
	TradeStats() bot.TradeStats
	JoinTournament(ctx context.Context, id string) (bool, error)
	FreeTournaments(ctx context.Context) ([]pocketoption.Tournament, error)
}

// SnapshotCache is the slice of the cache service the handlers use.
// cache.CacheService implements it; nil disables caching.
type SnapshotCache interface {
	IsHealthy() bool
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	GetStats() cache.Stats
}

var _ SnapshotCache = (*cache.CacheService)(nil)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	controller BotController
	cache      SnapshotCache
	hub        *WSHub
	cfg        config.ServerConfig
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewServer wires the routes and the websocket hub. The cache may be
// nil; handlers then serve straight from bot state.
func NewServer(cfg *config.Config, controller BotController, bus *events.EventBus,
	snapshots SnapshotCache, logger zerolog.Logger) *Server {

	if cfg.ServerConfig.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:     router,
		controller: controller,
		cache:      snapshots,
		hub:        NewWSHub(logger),
		cfg:        cfg.ServerConfig,
		timeout:    cfg.ControlTimeout(),
		logger:     logger.With().Str("component", "api").Logger(),
	}

	// Every bot event reaches every dashboard client.
	bus.SubscribeAll(s.hub.BroadcastEvent)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.POST("/control", s.handleControl)
		api.POST("/settings", s.handleSettings)
		api.GET("/tournaments/free", s.handleFreeTournaments)
		api.GET("/market/analysis", s.handleMarketAnalysis)
		api.GET("/trades/history", s.handleTradeHistory)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the websocket hub and the HTTP listener. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
