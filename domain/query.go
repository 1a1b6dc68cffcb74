package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type SortOrder string

const (
	SortRelevance  SortOrder = "relevance"
	SortDate       SortOrder = "date"
	SortDateAsc    SortOrder = "date_asc"
	SortPopularity SortOrder = "popularity"
	SortLikes      SortOrder = "likes"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortRelevance, SortDate, SortDateAsc, SortPopularity, SortLikes:
		return true
	}
	return false
}

// QueryFilters are exact-match clauses combined with the full-text query.
type QueryFilters struct {
	Category string
	Tags     []string
	Author   string
	Language string
	DateFrom *time.Time
	DateTo   *time.Time
}

func (f QueryFilters) IsEmpty() bool {
	return f.Category == "" && len(f.Tags) == 0 && f.Author == "" && f.Language == "" &&
		f.DateFrom == nil && f.DateTo == nil
}

// QueryRequest is the validated, typed search request. It is passed by value and never mutated.
type QueryRequest struct {
	Text     string
	Filters  QueryFilters
	Page     int
	PageSize int
	Sort     SortOrder
}

// QueryLimits bound the cost of a single query.
type QueryLimits struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxOffset       int
}

func DefaultQueryLimits() QueryLimits {
	return QueryLimits{DefaultPageSize: 20, MaxPageSize: 100, MaxOffset: 1000}
}

// IsListing reports whether the request asks for the plain recent-first listing.
func (q QueryRequest) IsListing() bool {
	return q.Text == "" && q.Filters.IsEmpty()
}

func (q QueryRequest) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Normalize validates q and returns its canonical form. No I/O happens here, so a
// request rejected by Normalize never reaches the index.
func (q QueryRequest) Normalize(limits QueryLimits) (QueryRequest, error) {
	if q.Page < 1 {
		return QueryRequest{}, &ValidationError{Field: "page", Reason: "must be >= 1"}
	}
	if q.PageSize < 0 {
		return QueryRequest{}, &ValidationError{Field: "page_size", Reason: "must not be negative"}
	}
	if q.Filters.DateFrom != nil && q.Filters.DateTo != nil && q.Filters.DateFrom.After(*q.Filters.DateTo) {
		return QueryRequest{}, &ValidationError{Field: "date_from", Reason: "must not be after date_to"}
	}
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	if !q.Sort.Valid() {
		return QueryRequest{}, &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort %q", q.Sort)}
	}
	if err := ValidateFilterTags(q.Filters.Tags); err != nil {
		return QueryRequest{}, err
	}

	out := q
	out.Text = strings.Join(strings.Fields(q.Text), " ")
	out.Filters.Category = FoldKeyword(q.Filters.Category)
	out.Filters.Language = FoldKeyword(q.Filters.Language)
	out.Filters.Author = strings.TrimSpace(q.Filters.Author)
	out.Filters.Tags = NormalizeTags(q.Filters.Tags)
	if q.Filters.DateFrom != nil {
		from := q.Filters.DateFrom.UTC()
		out.Filters.DateFrom = &from
	}
	if q.Filters.DateTo != nil {
		to := q.Filters.DateTo.UTC()
		out.Filters.DateTo = &to
	}

	switch {
	case out.PageSize == 0:
		out.PageSize = limits.DefaultPageSize
	case out.PageSize > limits.MaxPageSize:
		out.PageSize = limits.MaxPageSize
	}

	if off := out.Offset(); off > limits.MaxOffset {
		return QueryRequest{}, &PaginationRangeError{Offset: off, Max: limits.MaxOffset}
	}
	return out, nil
}

// FoldKeyword trims and lower-cases an exact-match keyword.
func FoldKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTags folds, dedupes and sorts tags so filter order never matters.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if f := FoldKeyword(t); f != "" {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IndexQuery is what the planner hands to the search index.
type IndexQuery struct {
	Text string
	// Terms holds the analyzed query keyed by analyzer name.
	Terms      map[string][]string
	Filters    QueryFilters
	Sort       SortOrder
	Offset     int
	Limit      int
	TitleBoost float64
	BodyBoost  float64
}

// ScoredDocument is one raw hit from the index.
type ScoredDocument struct {
	Document IndexDocument
	Score    float64
}

// IndexResult is the raw answer of the search index.
type IndexResult struct {
	Hits  []ScoredDocument
	Total int64
}

// FacetCount is one bucket of a facet distribution.
type FacetCount struct {
	Value string `json:"name"`
	Count int64  `json:"count"`
}
