package driver

import (
	"fmt"
	"strings"
	"time"
)

// FilterParams are the exact-match clauses of a Meilisearch query.
type FilterParams struct {
	Category string
	Tags     []string
	Author   string
	Language string
	DateFrom *time.Time
	DateTo   *time.Time
}

// escapeMeilisearchValue escapes special characters in Meilisearch filter values.
func escapeMeilisearchValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

func equals(field, value string) string {
	return fmt.Sprintf("%s = \"%s\"", field, escapeMeilisearchValue(value))
}

// BuildFilter renders filter params as a Meilisearch filter expression.
// Every tag must match; dates compare against the unix created_at_ts attribute.
func BuildFilter(p FilterParams) string {
	var clauses []string
	if p.Category != "" {
		clauses = append(clauses, equals("category", p.Category))
	}
	for _, tag := range p.Tags {
		clauses = append(clauses, equals("tags", tag))
	}
	if p.Author != "" {
		clauses = append(clauses, equals("author", p.Author))
	}
	if p.Language != "" {
		clauses = append(clauses, equals("language", p.Language))
	}
	if p.DateFrom != nil {
		clauses = append(clauses, fmt.Sprintf("created_at_ts >= %d", p.DateFrom.Unix()))
	}
	if p.DateTo != nil {
		clauses = append(clauses, fmt.Sprintf("created_at_ts <= %d", p.DateTo.Unix()))
	}
	return strings.Join(clauses, " AND ")
}
