package driver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

// PostRow is a post as read from the relational source store.
type PostRow struct {
	ID        string
	Title     string
	Body      string
	Tags      []string
	Category  string
	Author    string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
	ViewCount int64
	LikeCount int64
	DeletedAt *time.Time
}

// PostDocument is a post as stored in Meilisearch.
type PostDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TitleAnalyzed string    `json:"title_analyzed"`
	TitleExact    string    `json:"title_exact"`
	BodyAnalyzed  string    `json:"body_analyzed"`
	Excerpt       string    `json:"excerpt"`
	Tags          []string  `json:"tags"`
	Category      string    `json:"category"`
	Author        string    `json:"author"`
	Language      string    `json:"language"`
	Analyzer      string    `json:"analyzer"`
	SuggestTerms  []string  `json:"suggest_terms"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedAtTS   int64     `json:"created_at_ts"`
	ViewCount     int64     `json:"view_count"`
	LikeCount     int64     `json:"like_count"`
	ReadingTime   int       `json:"reading_time"`
	Checksum      string    `json:"checksum"`
	RankingScore  float64   `json:"_rankingScore,omitempty"`
}

// SearchParams is a Meilisearch query in driver terms.
type SearchParams struct {
	Query  string
	Filter string
	Sort   []string
	Offset int64
	Limit  int64
}

// SearchResult is a decoded Meilisearch response.
type SearchResult struct {
	Hits  []PostDocument
	Total int64
}

// DriverError represents an error from the driver layer.
type DriverError struct {
	Op  string
	Err string
	// Unavailable is set when the backend could not be reached or failed server-side.
	Unavailable bool
	// Timeout is set when the call exceeded its deadline.
	Timeout bool
	// NotFound is set when the backend reported a missing document.
	NotFound bool
}

func (e *DriverError) Error() string {
	return e.Op + ": " + e.Err
}

// newDriverError wraps err and classifies connectivity and deadline failures.
func newDriverError(op string, err error) *DriverError {
	de := &DriverError{Op: op, Err: err.Error()}

	if errors.Is(err, context.DeadlineExceeded) {
		de.Timeout = true
		return de
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			de.Timeout = true
		} else {
			de.Unavailable = true
		}
		return de
	}
	var msErr *meilisearch.Error
	if errors.As(err, &msErr) {
		switch {
		case msErr.StatusCode == 0 || msErr.StatusCode >= 500:
			de.Unavailable = true
		case msErr.StatusCode == 404:
			de.NotFound = true
		}
	}
	return de
}

// CursorRow is a persisted sync cursor.
type CursorRow struct {
	Source    string
	UpdatedAt time.Time
	RecordID  string
}

// SearchLogRow is one row of the search_logs table.
type SearchLogRow struct {
	Query           string
	ResultsCount    int64
	ResponseTimeMS  int64
	ClickedResultID string
	UserID          string
	IP              string
	UserAgent       string
	SearchTime      time.Time
}

// PopularSearchRow is one row of the popular_searches table.
type PopularSearchRow struct {
	Query        string
	SearchCount  int64
	LastSearched time.Time
}
