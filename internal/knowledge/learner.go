// Package knowledge holds trading concepts the bot has learned from
// external material and serves the ones relevant to the current
// market context.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Concept is one learned piece of trading knowledge.
type Concept struct {
	Keyword   string  `json:"keyword"`
	Category  string  `json:"category"`
	Content   string  `json:"content"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
	Source    string  `json:"source"`
}

// Store persists learned concepts. The database repository implements
// it; a nil store keeps the learner memory-only.
type Store interface {
	SaveKnowledge(ctx context.Context, concept Concept) error
	ListKnowledge(ctx context.Context) ([]Concept, error)
	GetKnowledgeByContext(ctx context.Context, marketContext string, limit int) ([]Concept, error)
}

// maxRelevant bounds how many concepts feed into one signal context.
const maxRelevant = 5

// conceptKeywords maps extraction keywords to their category.
var conceptKeywords = map[string]string{
	"Martingale":            "Risk Management",
	"Fibonacci":             "Technical Levels",
	"Bollinger Bands":       "Indicators",
	"Japanese Candlesticks": "Patterns",
	"Economic News":         "Fundamental Analysis",
}

// Learner keeps an in-memory concept cache backed by the store.
type Learner struct {
	store  Store
	logger zerolog.Logger

	mu       sync.RWMutex
	concepts []Concept
}

// Stats summarizes the learned corpus.
type Stats struct {
	TotalConcepts int            `json:"total_concepts"`
	Categories    map[string]int `json:"categories"`
}

// NewLearner creates a learner. The store may be nil.
func NewLearner(store Store, logger zerolog.Logger) *Learner {
	return &Learner{
		store:  store,
		logger: logger.With().Str("component", "knowledge").Logger(),
	}
}

// LearnFromText extracts known concepts from a document, persists them
// and adds them to the cache. Returns how many concepts were learned.
func (l *Learner) LearnFromText(ctx context.Context, source, text string) (int, error) {
	lower := strings.ToLower(text)

	var learned []Concept
	for keyword, category := range conceptKeywords {
		if !strings.Contains(lower, strings.ToLower(keyword)) {
			continue
		}
		concept := Concept{
			Keyword:   keyword,
			Category:  category,
			Content:   fmt.Sprintf("Discussion of %s", keyword),
			Summary:   fmt.Sprintf("The document mentions %s in the context of %s.", keyword, category),
			Relevance: 0.8,
			Source:    source,
		}
		if l.store != nil {
			if err := l.store.SaveKnowledge(ctx, concept); err != nil {
				return len(learned), fmt.Errorf("saving concept %q: %w", keyword, err)
			}
		}
		learned = append(learned, concept)
	}

	l.mu.Lock()
	l.concepts = append(l.concepts, learned...)
	l.mu.Unlock()

	l.logger.Info().Int("concepts", len(learned)).Str("source", source).
		Msg("Concepts learned")
	return len(learned), nil
}

// RelevantKnowledge returns up to 5 concepts whose keyword appears in
// the given context string. With a store present the match runs in the
// database ordered by relevance; the in-memory cache is the fallback.
func (l *Learner) RelevantKnowledge(ctx context.Context, marketContext string) []Concept {
	if l.store != nil {
		concepts, err := l.store.GetKnowledgeByContext(ctx, marketContext, maxRelevant)
		if err == nil {
			return concepts
		}
		l.logger.Warn().Err(err).Msg("Knowledge query failed, serving from cache")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	lower := strings.ToLower(marketContext)
	var relevant []Concept
	for _, concept := range l.concepts {
		if concept.Keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(concept.Keyword)) {
			relevant = append(relevant, concept)
			if len(relevant) == maxRelevant {
				break
			}
		}
	}
	return relevant
}

// Refresh replaces the cache with the store's contents. A nil store
// leaves the cache untouched.
func (l *Learner) Refresh(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	concepts, err := l.store.ListKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("loading knowledge: %w", err)
	}

	l.mu.Lock()
	l.concepts = concepts
	l.mu.Unlock()

	l.logger.Debug().Int("concepts", len(concepts)).Msg("Knowledge cache refreshed")
	return nil
}

// Stats reports the cached corpus size per category.
func (l *Learner) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	categories := make(map[string]int)
	for _, concept := range l.concepts {
		category := concept.Category
		if category == "" {
			category = "unknown"
		}
		categories[category]++
	}
	return Stats{TotalConcepts: len(l.concepts), Categories: categories}
}
