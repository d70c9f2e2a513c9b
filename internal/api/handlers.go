package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pocket-options-bot/internal/bot"
	"pocket-options-bot/internal/cache"
)

// controlRequest is the body of POST /api/control.
type controlRequest struct {
	Action       string `json:"action" binding:"required"`
	TournamentID string `json:"tournament_id"`
}

// settingsRequest is the body of POST /api/settings. Exactly one field
// is applied per request, checked in declaration order.
type settingsRequest struct {
	MinConfidence    *float64 `json:"min_confidence"`
	CurrentAsset     *string  `json:"current_asset"`
	CurrentTimeframe *int     `json:"current_timeframe"`
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if s.cache != nil {
		health["cache"] = s.cache.GetStats()
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.cacheReady() {
		var cached bot.Status
		if err := s.cache.GetJSON(c.Request.Context(), cache.BotStatusKey(), &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	status := s.controller.Status()
	if s.cacheReady() {
		if err := s.cache.SetJSON(c.Request.Context(), cache.BotStatusKey(), status, cache.DefaultSnapshotTTL); err != nil {
			s.logger.Debug().Err(err).Msg("Status snapshot not cached")
		}
	}
	c.JSON(http.StatusOK, status)
}

// cacheReady reports whether snapshot reads/writes should go to redis.
func (s *Server) cacheReady() bool {
	return s.cache != nil && s.cache.IsHealthy()
}

// invalidateStatus drops the cached status snapshot after a control
// action so the next read reflects the new state immediately.
func (s *Server) invalidateStatus(c *gin.Context) {
	if !s.cacheReady() {
		return
	}
	if err := s.cache.Delete(c.Request.Context(), cache.BotStatusKey()); err != nil {
		s.logger.Debug().Err(err).Msg("Status snapshot not invalidated")
	}
}

func (s *Server) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	switch req.Action {
	case "start":
		if err := s.controller.Start(c.Request.Context()); err != nil {
			s.controlError(c, err)
			return
		}
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"status": "started"})

	case "stop":
		if err := s.controller.Stop(); err != nil {
			s.controlError(c, err)
			return
		}
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})

	case "start_trading":
		s.controller.SetTradingEnabled(true)
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"status": "trading started"})

	case "stop_trading":
		s.controller.SetTradingEnabled(false)
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"status": "trading stopped"})

	case "join_tournament":
		if req.TournamentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tournament_id is required"})
			return
		}
		joined, err := s.controller.JoinTournament(c.Request.Context(), req.TournamentID)
		if err != nil {
			s.controlError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"joined": joined, "tournament_id": req.TournamentID})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
	}
}

func (s *Server) handleSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}

	switch {
	case req.MinConfidence != nil:
		applied := s.controller.SetMinConfidence(*req.MinConfidence)
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"min_confidence": applied})

	case req.CurrentAsset != nil:
		if err := s.controller.SetActiveAsset(*req.CurrentAsset); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"current_asset": *req.CurrentAsset})

	case req.CurrentTimeframe != nil:
		if err := s.controller.SetActiveTimeframe(*req.CurrentTimeframe); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.invalidateStatus(c)
		c.JSON(http.StatusOK, gin.H{"current_timeframe": *req.CurrentTimeframe})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "no recognized setting in payload"})
	}
}

func (s *Server) handleFreeTournaments(c *gin.Context) {
	tournaments, err := s.controller.FreeTournaments(c.Request.Context())
	if err != nil {
		s.controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournaments": tournaments})
}

// handleMarketAnalysis serves the active asset's snapshot through the
// redis cache when healthy, falling back to bot state on a miss.
func (s *Server) handleMarketAnalysis(c *gin.Context) {
	asset, timeframe := s.controller.ActiveMarket()
	key := cache.MarketAnalysisKey(asset, timeframe)

	if s.cacheReady() {
		var cached bot.MarketAnalysis
		if err := s.cache.GetJSON(c.Request.Context(), key, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	analysis := s.controller.MarketAnalysis()
	if s.cacheReady() {
		if err := s.cache.SetJSON(c.Request.Context(), key, analysis, cache.DefaultSnapshotTTL); err != nil {
			s.logger.Debug().Err(err).Msg("Analysis snapshot not cached")
		}
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.TradeStats())
}

// controlError maps bot errors to HTTP statuses: bounded-wait timeouts
// become 504, lifecycle conflicts 409, everything else 500.
func (s *Server) controlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bot.ErrControlTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "operation timed out"})
	case errors.Is(err, bot.ErrAlreadyRunning), errors.Is(err, bot.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Msg("Control operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
