package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// QueryClass selects the cache policy of a query.
type QueryClass string

const (
	ClassSearch     QueryClass = "search"
	ClassSuggest    QueryClass = "suggest"
	ClassPopular    QueryClass = "popular"
	ClassCategories QueryClass = "categories"
)

// QueryFingerprint identifies a normalized request within its class.
type QueryFingerprint string

type fingerprintFields struct {
	Text     string    `json:"q"`
	Category string    `json:"c,omitempty"`
	Tags     []string  `json:"t,omitempty"`
	Author   string    `json:"a,omitempty"`
	Language string    `json:"l,omitempty"`
	DateFrom string    `json:"df,omitempty"`
	DateTo   string    `json:"dt,omitempty"`
	Page     int       `json:"p"`
	PageSize int       `json:"ps"`
	Sort     SortOrder `json:"s"`
}

// Fingerprint hashes a normalized request. Call it on the output of Normalize.
func Fingerprint(q QueryRequest) QueryFingerprint {
	f := fingerprintFields{
		Text:     strings.ToLower(q.Text),
		Category: q.Filters.Category,
		Tags:     q.Filters.Tags,
		Author:   q.Filters.Author,
		Language: q.Filters.Language,
		Page:     q.Page,
		PageSize: q.PageSize,
		Sort:     q.Sort,
	}
	if q.Filters.DateFrom != nil {
		f.DateFrom = q.Filters.DateFrom.UTC().Format(time.RFC3339)
	}
	if q.Filters.DateTo != nil {
		f.DateTo = q.Filters.DateTo.UTC().Format(time.RFC3339)
	}
	return FingerprintOf(ClassSearch, f)
}

// FingerprintOf hashes any JSON-encodable key within a class.
func FingerprintOf(class QueryClass, v any) QueryFingerprint {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return QueryFingerprint(string(class) + ":" + hex.EncodeToString(sum[:]))
}

// ResponseEnvelope is the immutable answer to a search request.
type ResponseEnvelope struct {
	Total           int64       `json:"total"`
	Results         []SearchHit `json:"results"`
	Page            int         `json:"page"`
	PageSize        int         `json:"page_size"`
	TotalPages      int         `json:"total_pages"`
	HasNext         bool        `json:"has_next"`
	ExecutionTimeMS int64       `json:"execution_time_ms"`
	Degraded        bool        `json:"degraded,omitempty"`
}

func NewResponseEnvelope(total int64, hits []SearchHit, page, pageSize int, elapsed time.Duration) *ResponseEnvelope {
	if hits == nil {
		hits = []SearchHit{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &ResponseEnvelope{
		Total:           total,
		Results:         hits,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNext:         total > int64(page)*int64(pageSize),
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
}

// AsDegraded returns a copy flagged as served from a stale fallback.
func (e *ResponseEnvelope) AsDegraded() *ResponseEnvelope {
	cp := *e
	cp.Degraded = true
	return &cp
}
