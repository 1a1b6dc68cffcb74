package usecase

import (
	"context"

	"post-search/cache"
	"post-search/domain"
	"post-search/logger"
	"post-search/port"
)

type CategoriesUsecase struct {
	index    port.SearchIndex
	cache    *cache.ResultCache
	defaults []string
}

func NewCategoriesUsecase(index port.SearchIndex, resultCache *cache.ResultCache, defaults []string) *CategoriesUsecase {
	return &CategoriesUsecase{index: index, cache: resultCache, defaults: defaults}
}

// List returns the category facet of the index. When the index cannot answer,
// or holds no categories yet, the configured defaults are returned with zero counts.
func (u *CategoriesUsecase) List(ctx context.Context) ([]domain.FacetCount, error) {
	key := domain.FingerprintOf(domain.ClassCategories, "category")
	facets, err := cache.Lookup(ctx, u.cache, domain.ClassCategories, key, func(ctx context.Context) ([]domain.FacetCount, error) {
		return u.index.Facet(ctx, "category")
	})
	if err != nil {
		logger.FromContext(ctx).Warn("category facet failed, using defaults", "error", err)
		return u.fallback(), nil
	}
	if len(facets) == 0 {
		return u.fallback(), nil
	}
	return facets, nil
}

func (u *CategoriesUsecase) fallback() []domain.FacetCount {
	out := make([]domain.FacetCount, 0, len(u.defaults))
	for _, c := range u.defaults {
		out = append(out, domain.FacetCount{Value: domain.FoldKeyword(c)})
	}
	return out
}
