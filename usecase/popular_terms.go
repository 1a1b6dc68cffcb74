package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"post-search/cache"
	"post-search/domain"
	"post-search/logger"
	"post-search/port"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 100
)

type PopularTermsUsecase struct {
	logs        port.SearchLogRepository
	sink        port.SearchLogSink
	suggestions port.SuggestionStore
	cache       *cache.ResultCache
	// window bounds the log history counted by RecomputePopularity; zero counts everything.
	window time.Duration
	now    func() time.Time
}

func NewPopularTermsUsecase(logs port.SearchLogRepository, sink port.SearchLogSink, suggestions port.SuggestionStore, resultCache *cache.ResultCache, window time.Duration) *PopularTermsUsecase {
	return &PopularTermsUsecase{
		logs:        logs,
		sink:        sink,
		suggestions: suggestions,
		cache:       resultCache,
		window:      window,
		now:         time.Now,
	}
}

// Top returns the most searched queries.
func (u *PopularTermsUsecase) Top(ctx context.Context, limit int) ([]domain.PopularTerm, error) {
	switch {
	case limit < 0:
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	case limit == 0:
		limit = defaultPopularLimit
	case limit > maxPopularLimit:
		limit = maxPopularLimit
	}

	key := domain.FingerprintOf(domain.ClassPopular, limit)
	return cache.Lookup(ctx, u.cache, domain.ClassPopular, key, func(ctx context.Context) ([]domain.PopularTerm, error) {
		terms, err := u.logs.TopQueries(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("top queries: %w", err)
		}
		if terms == nil {
			terms = []domain.PopularTerm{}
		}
		return terms, nil
	})
}

// RecordClick logs that resultID was opened from the results of query.
func (u *PopularTermsUsecase) RecordClick(ctx context.Context, query, resultID string, meta domain.RequestMeta) error {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return &domain.ValidationError{Field: "query", Reason: "is required"}
	}
	resultID = strings.TrimSpace(resultID)
	if resultID == "" {
		return &domain.ValidationError{Field: "result_id", Reason: "is required"}
	}
	u.sink.Record(domain.SearchLogEntry{
		Query:           query,
		ClickedResultID: resultID,
		UserID:          meta.UserID,
		ClientIP:        meta.ClientIP,
		UserAgent:       meta.UserAgent,
		Timestamp:       u.now(),
	})
	return nil
}

// RecomputePopularity rebuilds the suggestion popularity table from the search
// log and returns the number of terms that received a score.
func (u *PopularTermsUsecase) RecomputePopularity(ctx context.Context) (int, error) {
	var since time.Time
	if u.window > 0 {
		since = u.now().Add(-u.window)
	}
	counts, err := u.logs.AggregateCounts(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("aggregate query counts: %w", err)
	}
	terms, err := u.suggestions.Terms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list suggest terms: %w", err)
	}

	scores := PopularityScores(terms, counts)
	if err := u.suggestions.ReplacePopularity(ctx, scores); err != nil {
		return 0, fmt.Errorf("replace popularity: %w", err)
	}
	u.cache.Purge(ctx, domain.ClassSuggest)

	logger.FromContext(ctx).Info("popularity recomputed", "queries", len(counts), "terms", len(terms), "scored", len(scores))
	return len(scores), nil
}

// PopularityScores credits each logged query count to every suggest term that
// equals the folded query or is a leading whole-word part of it.
func PopularityScores(terms []string, counts map[string]int64) map[string]float64 {
	known := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		known[domain.FoldTerm(t)] = struct{}{}
	}

	scores := make(map[string]float64)
	for query, n := range counts {
		words := strings.Fields(domain.FoldTerm(query))
		for i := 1; i <= len(words); i++ {
			prefix := strings.Join(words[:i], " ")
			if _, ok := known[prefix]; ok {
				scores[prefix] += float64(n)
			}
		}
	}
	return scores
}
