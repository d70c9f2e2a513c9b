package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type memStore struct {
	saved        []Concept
	contextCalls int
}

func (s *memStore) SaveKnowledge(ctx context.Context, concept Concept) error {
	s.saved = append(s.saved, concept)
	return nil
}

func (s *memStore) ListKnowledge(ctx context.Context) ([]Concept, error) {
	return s.saved, nil
}

func (s *memStore) GetKnowledgeByContext(ctx context.Context, marketContext string, limit int) ([]Concept, error) {
	s.contextCalls++
	lower := strings.ToLower(marketContext)

	var matched []Concept
	for _, c := range s.saved {
		if c.Keyword == "" || !strings.Contains(lower, strings.ToLower(c.Keyword)) {
			continue
		}
		matched = append(matched, c)
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func TestLearnFromTextExtractsAndPersists(t *testing.T) {
	store := &memStore{}
	learner := NewLearner(store, zerolog.Nop())

	text := "Chapter 3 covers Bollinger Bands and the Martingale system."
	n, err := learner.LearnFromText(context.Background(), "book.pdf", text)
	if err != nil {
		t.Fatalf("LearnFromText failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Should learn both mentioned concepts, got %d", n)
	}
	if len(store.saved) != 2 {
		t.Errorf("Should persist every learned concept, got %d", len(store.saved))
	}
	for _, c := range store.saved {
		if c.Source != "book.pdf" || c.Relevance != 0.8 {
			t.Errorf("Should tag concepts with source and relevance, got %+v", c)
		}
	}
}

func TestRelevantKnowledgeMatchesAndCaps(t *testing.T) {
	ctx := context.Background()
	learner := NewLearner(nil, zerolog.Nop())

	if got := learner.RelevantKnowledge(ctx, "anything"); len(got) != 0 {
		t.Errorf("Should return nothing before learning, got %d", len(got))
	}

	// Seed more matching concepts than the cap allows.
	text := "Fibonacci retracement levels"
	for i := 0; i < 7; i++ {
		if _, err := learner.LearnFromText(ctx, "doc", text); err != nil {
			t.Fatalf("LearnFromText failed: %v", err)
		}
	}

	got := learner.RelevantKnowledge(ctx, "price near a fibonacci retracement")
	if len(got) != 5 {
		t.Errorf("Should cap relevant knowledge at 5 concepts, got %d", len(got))
	}
	for _, c := range got {
		if c.Keyword != "Fibonacci" {
			t.Errorf("Should only match concepts named in the context, got %q", c.Keyword)
		}
	}

	if got := learner.RelevantKnowledge(ctx, "plain RSI setup"); len(got) != 0 {
		t.Errorf("Should not match unrelated contexts, got %d", len(got))
	}
}

func TestRelevantKnowledgeQueriesStore(t *testing.T) {
	// The stored concept is deliberately absent from the in-memory
	// cache, so a match proves the store query served the result.
	store := &memStore{saved: []Concept{
		{Keyword: "Martingale", Category: "Risk Management", Relevance: 0.8},
	}}
	learner := NewLearner(store, zerolog.Nop())

	got := learner.RelevantKnowledge(context.Background(), "martingale recovery sizing")
	if len(got) != 1 || got[0].Keyword != "Martingale" {
		t.Fatalf("Should serve the store's match, got %+v", got)
	}
	if store.contextCalls != 1 {
		t.Errorf("Should consult the store exactly once, got %d calls", store.contextCalls)
	}
}

func TestRefreshReloadsFromStore(t *testing.T) {
	store := &memStore{saved: []Concept{
		{Keyword: "Martingale", Category: "Risk Management"},
		{Keyword: "Fibonacci", Category: "Technical Levels"},
		{Keyword: "Economic News"},
	}}
	learner := NewLearner(store, zerolog.Nop())

	if err := learner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	stats := learner.Stats()
	if stats.TotalConcepts != 3 {
		t.Errorf("Should load all stored concepts, got %d", stats.TotalConcepts)
	}
	if stats.Categories["Risk Management"] != 1 || stats.Categories["unknown"] != 1 {
		t.Errorf("Should bucket concepts per category, got %v", stats.Categories)
	}
}
