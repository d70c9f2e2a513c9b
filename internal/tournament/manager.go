// Package tournament finds free venue tournaments and joins the daily
// free one automatically, rate-limited so the venue is not polled on
// every wake-up.
package tournament

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pocket-options-bot/internal/pocketoption"
)

// dailyFreeName is the case-insensitive needle for the automated join.
const dailyFreeName = "daily free tournament"

// Manager handles tournament discovery and joining.
type Manager struct {
	client pocketoption.Client
	logger zerolog.Logger

	// attemptGate is the minimum time between automated join attempts,
	// independent of how often the bot's tournament task wakes.
	attemptGate time.Duration

	mu          sync.Mutex
	lastAttempt time.Time
	joined      bool
}

// NewManager creates a tournament manager with the given attempt gate.
func NewManager(client pocketoption.Client, attemptGate time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		client:      client,
		attemptGate: attemptGate,
		logger:      logger.With().Str("component", "tournament").Logger(),
	}
}

// FreeTournaments lists tournaments that can be entered without a fee.
func (m *Manager) FreeTournaments(ctx context.Context) ([]pocketoption.Tournament, error) {
	tournaments, err := m.client.GetTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tournaments: %w", err)
	}

	free := make([]pocketoption.Tournament, 0, len(tournaments))
	for _, t := range tournaments {
		if t.IsFree() {
			free = append(free, t)
		}
	}
	m.logger.Info().Int("count", len(free)).Msg("Active free tournaments found")
	return free, nil
}

// JoinByID joins one tournament directly, bypassing the attempt gate.
func (m *Manager) JoinByID(ctx context.Context, id string) (bool, error) {
	if !m.client.IsConnected() {
		return false, pocketoption.ErrNotConnected
	}

	joined, err := m.client.JoinTournament(ctx, id)
	if err != nil {
		return false, fmt.Errorf("joining tournament %s: %w", id, err)
	}
	if joined {
		m.mu.Lock()
		m.joined = true
		m.mu.Unlock()
		m.logger.Info().Str("tournament_id", id).Msg("Joined tournament")
	} else {
		m.logger.Warn().Str("tournament_id", id).Msg("Tournament join refused")
	}
	return joined, nil
}

// JoinDailyFree attempts the automated daily-free join. The attempt is
// skipped while the gate since the previous attempt has not elapsed;
// the gate advances on every attempt regardless of outcome. Returns
// the joined tournament ID, or "" when skipped or not joined.
func (m *Manager) JoinDailyFree(ctx context.Context) (string, error) {
	m.mu.Lock()
	if time.Since(m.lastAttempt) < m.attemptGate {
		m.mu.Unlock()
		return "", nil
	}
	m.lastAttempt = time.Now()
	m.mu.Unlock()

	m.logger.Info().Msg("Attempting automated daily free tournament join")

	free, err := m.FreeTournaments(ctx)
	if err != nil {
		return "", err
	}

	for _, t := range free {
		if !strings.Contains(strings.ToLower(t.Name), dailyFreeName) {
			continue
		}
		joined, err := m.JoinByID(ctx, t.ID)
		if err != nil {
			return "", err
		}
		if joined {
			return t.ID, nil
		}
		return "", nil
	}

	m.logger.Info().Msg("Daily free tournament not found")
	return "", nil
}

// Joined reports whether any tournament has been joined this session.
func (m *Manager) Joined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined
}
