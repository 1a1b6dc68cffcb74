package port

import (
	"context"

	"post-search/domain"
)

// SearchIndex is the inverted-index engine holding mapped posts.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, docs []domain.IndexDocument) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error)
	Get(ctx context.Context, id string) (*domain.IndexDocument, error)
	// Checksums returns id -> checksum for every indexed document.
	Checksums(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int64, error)
	Facet(ctx context.Context, field string) ([]domain.FacetCount, error)
	RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error
	Healthy(ctx context.Context) bool
}
