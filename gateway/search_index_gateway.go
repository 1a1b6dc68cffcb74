package gateway

import (
	"context"
	"maps"
	"slices"
	"strings"

	"post-search/domain"
	"post-search/driver"
)

// checksumPageSize is the page size of the id/checksum projection scan.
const checksumPageSize = 1000

type SearchDriver interface {
	EnsureIndex(ctx context.Context) error
	AddDocuments(ctx context.Context, docs []driver.PostDocument) error
	DeleteDocuments(ctx context.Context, ids []string) error
	Search(ctx context.Context, p driver.SearchParams) (*driver.SearchResult, error)
	GetDocument(ctx context.Context, id string) (*driver.PostDocument, error)
	ListChecksums(ctx context.Context, pageSize int64) (map[string]string, error)
	Count(ctx context.Context) (int64, error)
	FacetDistribution(ctx context.Context, field string) (map[string]int64, error)
	RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error
	Healthy(ctx context.Context) bool
}

// SearchIndexGateway adapts the Meilisearch driver to port.SearchIndex.
type SearchIndexGateway struct {
	driver SearchDriver
}

func NewSearchIndexGateway(driver SearchDriver) *SearchIndexGateway {
	return &SearchIndexGateway{driver: driver}
}

func (g *SearchIndexGateway) EnsureIndex(ctx context.Context) error {
	if err := g.driver.EnsureIndex(ctx); err != nil {
		return searchError("EnsureIndex", err)
	}
	return nil
}

func (g *SearchIndexGateway) Upsert(ctx context.Context, docs []domain.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}

	driverDocs := make([]driver.PostDocument, len(docs))
	for i, d := range docs {
		driverDocs[i] = toPostDocument(d)
	}
	if err := g.driver.AddDocuments(ctx, driverDocs); err != nil {
		return searchError("Upsert", err)
	}
	return nil
}

func (g *SearchIndexGateway) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := g.driver.DeleteDocuments(ctx, ids); err != nil {
		return searchError("Delete", err)
	}
	return nil
}

func (g *SearchIndexGateway) Search(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	textual := queryString(q.Terms)
	res, err := g.driver.Search(ctx, driver.SearchParams{
		Query: textual,
		Filter: driver.BuildFilter(driver.FilterParams{
			Category: q.Filters.Category,
			Tags:     q.Filters.Tags,
			Author:   q.Filters.Author,
			Language: q.Filters.Language,
			DateFrom: q.Filters.DateFrom,
			DateTo:   q.Filters.DateTo,
		}),
		Sort:   sortRules(q.Sort, textual != ""),
		Offset: int64(q.Offset),
		Limit:  int64(q.Limit),
	})
	if err != nil {
		return nil, searchError("Search", err)
	}

	hits := make([]domain.ScoredDocument, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = domain.ScoredDocument{Document: toIndexDocument(h), Score: h.RankingScore}
	}
	return &domain.IndexResult{Hits: hits, Total: res.Total}, nil
}

func (g *SearchIndexGateway) Get(ctx context.Context, id string) (*domain.IndexDocument, error) {
	doc, err := g.driver.GetDocument(ctx, id)
	if err != nil {
		return nil, searchError("Get", err)
	}
	out := toIndexDocument(*doc)
	return &out, nil
}

func (g *SearchIndexGateway) Checksums(ctx context.Context) (map[string]string, error) {
	sums, err := g.driver.ListChecksums(ctx, checksumPageSize)
	if err != nil {
		return nil, searchError("Checksums", err)
	}
	return sums, nil
}

func (g *SearchIndexGateway) Count(ctx context.Context) (int64, error) {
	n, err := g.driver.Count(ctx)
	if err != nil {
		return 0, searchError("Count", err)
	}
	return n, nil
}

func (g *SearchIndexGateway) Facet(ctx context.Context, field string) ([]domain.FacetCount, error) {
	dist, err := g.driver.FacetDistribution(ctx, field)
	if err != nil {
		return nil, searchError("Facet", err)
	}
	return driver.SortFacets(dist), nil
}

func (g *SearchIndexGateway) RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error {
	if err := g.driver.RegisterSynonyms(ctx, synonyms); err != nil {
		return searchError("RegisterSynonyms", err)
	}
	return nil
}

func (g *SearchIndexGateway) Healthy(ctx context.Context) bool {
	return g.driver.Healthy(ctx)
}

// queryString joins the distinct analyzed terms of every analyzer. Meilisearch
// matches them against both the analyzed and the raw title fields.
func queryString(terms map[string][]string) string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range slices.Sorted(maps.Keys(terms)) {
		for _, t := range terms[name] {
			if !seen[t] {
				seen[t] = true
				out = append(out, strings.ReplaceAll(t, "_", " "))
			}
		}
	}
	return strings.Join(out, " ")
}

// sortRules maps a sort order to Meilisearch sort expressions. Relevance relies
// on the ranking rules, which already end with created_at_ts:desc and id:asc.
func sortRules(order domain.SortOrder, textual bool) []string {
	switch order {
	case domain.SortDate:
		return []string{"created_at_ts:desc", "id:asc"}
	case domain.SortDateAsc:
		return []string{"created_at_ts:asc", "id:asc"}
	case domain.SortPopularity:
		return []string{"view_count:desc", "created_at_ts:desc", "id:asc"}
	case domain.SortLikes:
		return []string{"like_count:desc", "created_at_ts:desc", "id:asc"}
	}
	if !textual {
		return []string{"created_at_ts:desc", "id:asc"}
	}
	return nil
}

func toPostDocument(d domain.IndexDocument) driver.PostDocument {
	return driver.PostDocument{
		ID:            d.ID,
		Title:         d.Title,
		TitleAnalyzed: d.TitleAnalyzed,
		TitleExact:    d.TitleExact,
		BodyAnalyzed:  d.BodyAnalyzed,
		Excerpt:       d.Excerpt,
		Tags:          d.Tags,
		Category:      d.Category,
		Author:        d.Author,
		Language:      d.Language,
		Analyzer:      d.Analyzer,
		SuggestTerms:  d.SuggestTerms,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CreatedAtTS:   d.CreatedAtTS,
		ViewCount:     d.ViewCount,
		LikeCount:     d.LikeCount,
		ReadingTime:   d.ReadingTime,
		Checksum:      d.Checksum,
	}
}

func toIndexDocument(d driver.PostDocument) domain.IndexDocument {
	return domain.IndexDocument{
		ID:            d.ID,
		Title:         d.Title,
		TitleAnalyzed: d.TitleAnalyzed,
		TitleExact:    d.TitleExact,
		BodyAnalyzed:  d.BodyAnalyzed,
		Excerpt:       d.Excerpt,
		Tags:          d.Tags,
		Category:      d.Category,
		Author:        d.Author,
		Language:      d.Language,
		Analyzer:      d.Analyzer,
		SuggestTerms:  d.SuggestTerms,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CreatedAtTS:   d.CreatedAtTS,
		ViewCount:     d.ViewCount,
		LikeCount:     d.LikeCount,
		ReadingTime:   d.ReadingTime,
		Checksum:      d.Checksum,
	}
}
