package domain

import (
	"strings"
	"time"
)

// SearchLogEntry is one executed query. Entries are append-only.
type SearchLogEntry struct {
	Query           string
	ResultsCount    int64
	ResponseTime    time.Duration
	ClickedResultID string
	UserID          string
	ClientIP        string
	UserAgent       string
	Timestamp       time.Time
}

// RequestMeta carries caller details that end up in the search log.
type RequestMeta struct {
	UserID    string
	ClientIP  string
	UserAgent string
}

// PopularTerm is an aggregated query count.
type PopularTerm struct {
	Query        string    `json:"query"`
	Count        int64     `json:"count"`
	LastSearched time.Time `json:"last_searched"`
}

// Suggestion is an autocomplete candidate with its popularity score.
type Suggestion struct {
	Term       string
	Popularity float64
}

// FoldTerm lower-cases a query or suggestion and collapses its whitespace.
// Popularity and prefix lookups compare folded terms.
func FoldTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
