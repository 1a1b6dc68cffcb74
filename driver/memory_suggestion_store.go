package driver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"post-search/domain"
)

// MemorySuggestionStore keeps folded terms in a sorted slice for binary-searched prefix lookups.
type MemorySuggestionStore struct {
	mu         sync.RWMutex
	keys       []string
	display    map[string]string
	popularity map[string]float64
}

func NewMemorySuggestionStore() *MemorySuggestionStore {
	return &MemorySuggestionStore{
		display:    make(map[string]string),
		popularity: make(map[string]float64),
	}
}

func (s *MemorySuggestionStore) AddTerms(ctx context.Context, terms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range terms {
		display := strings.Join(strings.Fields(t), " ")
		if display == "" {
			continue
		}
		key := domain.FoldTerm(display)
		if _, ok := s.display[key]; ok {
			continue
		}
		s.display[key] = display
		i := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = key
	}
	return nil
}

func (s *MemorySuggestionStore) Prefix(ctx context.Context, prefix string, limit int) ([]domain.Suggestion, error) {
	folded := domain.FoldTerm(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Suggestion, 0)
	for i := sort.SearchStrings(s.keys, folded); i < len(s.keys); i++ {
		key := s.keys[i]
		if !strings.HasPrefix(key, folded) {
			break
		}
		out = append(out, domain.Suggestion{Term: s.display[key], Popularity: s.popularity[key]})
	}
	return RankSuggestions(out, limit), nil
}

// ReplaceTerms swaps the term set. Popularity scores are kept.
func (s *MemorySuggestionStore) ReplaceTerms(ctx context.Context, terms []string) error {
	next := NewMemorySuggestionStore()
	if err := next.AddTerms(ctx, terms); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys, s.display = next.keys, next.display
	s.mu.Unlock()
	return nil
}

func (s *MemorySuggestionStore) ReplacePopularity(ctx context.Context, scores map[string]float64) error {
	next := make(map[string]float64, len(scores))
	for term, score := range scores {
		next[domain.FoldTerm(term)] = score
	}
	s.mu.Lock()
	s.popularity = next
	s.mu.Unlock()
	return nil
}

func (s *MemorySuggestionStore) Terms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.display[k])
	}
	return out, nil
}
