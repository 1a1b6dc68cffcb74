package usecase

import (
	"context"
	"strings"

	"post-search/cache"
	"post-search/domain"
	"post-search/logger"
	"post-search/port"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 50
)

type SuggestUsecase struct {
	store        port.SuggestionStore
	cache        *cache.ResultCache
	defaultLimit int
	maxLimit     int
}

func NewSuggestUsecase(store port.SuggestionStore, resultCache *cache.ResultCache, defaultLimit, maxLimit int) *SuggestUsecase {
	if defaultLimit <= 0 {
		defaultLimit = defaultSuggestLimit
	}
	if maxLimit <= 0 {
		maxLimit = maxSuggestLimit
	}
	return &SuggestUsecase{store: store, cache: resultCache, defaultLimit: min(defaultLimit, maxLimit), maxLimit: maxLimit}
}

type suggestKey struct {
	Prefix string `json:"p"`
	Limit  int    `json:"l"`
}

// Suggest returns up to limit completions of prefix, most popular first.
func (u *SuggestUsecase) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "prefix is required"}
	}
	switch {
	case limit < 0:
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	case limit == 0:
		limit = u.defaultLimit
	case limit > u.maxLimit:
		limit = u.maxLimit
	}

	key := domain.FingerprintOf(domain.ClassSuggest, suggestKey{Prefix: domain.FoldTerm(prefix), Limit: limit})
	terms, err := cache.Lookup(ctx, u.cache, domain.ClassSuggest, key, func(ctx context.Context) ([]string, error) {
		suggestions, err := u.store.Prefix(ctx, prefix, limit)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			out = append(out, s.Term)
		}
		return out, nil
	})
	if err == nil {
		return terms, nil
	}

	if stale, ok := cache.Stale[[]string](u.cache, key); ok {
		logger.FromContext(ctx).Warn("suggestion store failed, serving stale suggestions", "prefix", prefix, "error", err)
		return stale, nil
	}
	return nil, &domain.IndexUnavailableError{Op: "Suggest", Err: err.Error()}
}
