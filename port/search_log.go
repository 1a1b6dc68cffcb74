package port

import (
	"context"
	"time"

	"post-search/domain"
)

// SearchLogRepository persists search log entries and their aggregates.
type SearchLogRepository interface {
	AppendBatch(ctx context.Context, entries []domain.SearchLogEntry) error
	TopQueries(ctx context.Context, limit int) ([]domain.PopularTerm, error)
	// AggregateCounts returns query -> number of searches since the given time.
	AggregateCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

// SearchLogSink accepts entries without blocking the caller.
type SearchLogSink interface {
	Record(entry domain.SearchLogEntry)
}

// SuggestionStore is the prefix-indexed autocomplete structure.
type SuggestionStore interface {
	AddTerms(ctx context.Context, terms []string) error
	// ReplaceTerms swaps the whole term set, keeping popularity scores.
	ReplaceTerms(ctx context.Context, terms []string) error
	// Prefix returns up to limit terms starting with prefix (case-insensitive),
	// most popular first and then in alphabetical order.
	Prefix(ctx context.Context, prefix string, limit int) ([]domain.Suggestion, error)
	// ReplacePopularity swaps the popularity table for the given scores.
	ReplacePopularity(ctx context.Context, scores map[string]float64) error
	Terms(ctx context.Context) ([]string, error)
}
