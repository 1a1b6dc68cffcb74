package driver

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"post-search/domain"
)

type memoryEntry struct {
	doc        domain.IndexDocument
	titleTerms map[string]int
	bodyTerms  map[string]int
}

// MemoryIndex is an in-process implementation of the search index used by
// `serve --memory` and by tests. Scoring is idf-weighted term frequency with
// title and body boosts, mirroring the attribute ranking of the Meilisearch index.
type MemoryIndex struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	synonyms map[string][]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]*memoryEntry)}
}

func termCounts(analyzed string) map[string]int {
	counts := make(map[string]int)
	for _, t := range strings.Fields(analyzed) {
		counts[t]++
	}
	return counts
}

func (m *MemoryIndex) EnsureIndex(ctx context.Context) error { return nil }

func (m *MemoryIndex) Upsert(ctx context.Context, docs []domain.IndexDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.entries[d.ID] = &memoryEntry{
			doc:        d,
			titleTerms: termCounts(d.TitleAnalyzed),
			bodyTerms:  termCounts(d.BodyAnalyzed),
		}
	}
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (*domain.IndexDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := e.doc
	return &doc, nil
}

func (m *MemoryIndex) Checksums(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.doc.Checksum
	}
	return out, nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryIndex) Facet(ctx context.Context, field string) ([]domain.FacetCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range m.entries {
		switch field {
		case "category":
			if e.doc.Category != "" {
				counts[e.doc.Category]++
			}
		case "tags":
			for _, t := range e.doc.Tags {
				counts[t]++
			}
		case "language":
			counts[e.doc.Language]++
		case "author":
			if e.doc.Author != "" {
				counts[e.doc.Author]++
			}
		}
	}
	return SortFacets(counts), nil
}

func (m *MemoryIndex) RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error {
	folded := make(map[string][]string, len(synonyms))
	for k, v := range synonyms {
		key := strings.ToLower(k)
		for _, s := range v {
			folded[key] = append(folded[key], strings.ToLower(s))
		}
	}
	m.mu.Lock()
	m.synonyms = folded
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Healthy(ctx context.Context) bool { return true }

func (m *MemoryIndex) Search(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TimeoutError{Op: "Search", Err: err.Error()}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	textual := hasTerms(q.Terms)
	idf := m.idf(q.Terms)

	hits := make([]domain.ScoredDocument, 0)
	matched := make(map[string]int)
	for _, e := range m.entries {
		if !matchesFilters(e.doc, q.Filters) {
			continue
		}
		if !textual {
			hits = append(hits, domain.ScoredDocument{Document: e.doc})
			continue
		}
		var score float64
		words := 0
		for _, term := range m.expand(q.Terms[e.doc.Analyzer]) {
			tf := q.TitleBoost*float64(e.titleTerms[term]) + q.BodyBoost*float64(e.bodyTerms[term])
			if tf == 0 {
				continue
			}
			words++
			score += idf[term] * tf
		}
		if words == 0 {
			continue
		}
		matched[e.doc.ID] = words
		hits = append(hits, domain.ScoredDocument{Document: e.doc, Score: score})
	}

	sortHits(hits, q.Sort, textual, matched)

	total := int64(len(hits))
	start := min(q.Offset, len(hits))
	end := len(hits)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(hits))
	}
	return &domain.IndexResult{Hits: hits[start:end], Total: total}, nil
}

func hasTerms(terms map[string][]string) bool {
	for _, t := range terms {
		if len(t) > 0 {
			return true
		}
	}
	return false
}

func (m *MemoryIndex) expand(terms []string) []string {
	if len(m.synonyms) == 0 {
		return terms
	}
	out := append([]string(nil), terms...)
	for _, t := range terms {
		out = append(out, m.synonyms[t]...)
	}
	return out
}

// idf computes ln(1 + N/df) for every query term present in the corpus.
func (m *MemoryIndex) idf(terms map[string][]string) map[string]float64 {
	n := float64(len(m.entries))
	out := make(map[string]float64)
	for _, list := range terms {
		for _, term := range m.expand(list) {
			if _, done := out[term]; done {
				continue
			}
			df := 0
			for _, e := range m.entries {
				if e.titleTerms[term] > 0 || e.bodyTerms[term] > 0 {
					df++
				}
			}
			if df > 0 {
				out[term] = math.Log(1 + n/float64(df))
			}
		}
	}
	return out
}

func matchesFilters(doc domain.IndexDocument, f domain.QueryFilters) bool {
	if f.Category != "" && doc.Category != f.Category {
		return false
	}
	if f.Author != "" && doc.Author != f.Author {
		return false
	}
	if f.Language != "" && doc.Language != f.Language {
		return false
	}
	for _, tag := range f.Tags {
		found := false
		for _, t := range doc.Tags {
			if t == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateFrom != nil && doc.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && doc.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

// sortHits orders hits like the Meilisearch ranking rules: matched words, score,
// then created_at desc and id asc as the final tie-breakers.
func sortHits(hits []domain.ScoredDocument, order domain.SortOrder, textual bool, matched map[string]int) {
	newestFirst := func(a, b domain.IndexDocument) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch order {
		case domain.SortDate:
			return newestFirst(a.Document, b.Document)
		case domain.SortDateAsc:
			if !a.Document.CreatedAt.Equal(b.Document.CreatedAt) {
				return a.Document.CreatedAt.Before(b.Document.CreatedAt)
			}
			return a.Document.ID < b.Document.ID
		case domain.SortPopularity:
			if a.Document.ViewCount != b.Document.ViewCount {
				return a.Document.ViewCount > b.Document.ViewCount
			}
		case domain.SortLikes:
			if a.Document.LikeCount != b.Document.LikeCount {
				return a.Document.LikeCount > b.Document.LikeCount
			}
		}
		if textual {
			if matched[a.Document.ID] != matched[b.Document.ID] {
				return matched[a.Document.ID] > matched[b.Document.ID]
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		}
		return newestFirst(a.Document, b.Document)
	})
}

// SortFacets orders facet buckets by count desc, then value.
func SortFacets(counts map[string]int64) []domain.FacetCount {
	out := make([]domain.FacetCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, domain.FacetCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
