// Package utils holds request hardening helpers shared by the transport layers.
package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxQueryLength is the default maximum query length in runes.
const DefaultMaxQueryLength = 512

var (
	scriptBlock   = regexp.MustCompile(`(?is)<(script|style)\b.*?(</(script|style)\s*>|$)`)
	htmlTag       = regexp.MustCompile(`(?s)<[^<>]*>`)
	scriptPrefix  = regexp.MustCompile(`(?i)\b(javascript|vbscript|data):`)
	eventHandler  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	zeroWidthRune = strings.NewReplacer(
		"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "", "\u200e", "", "\u200f", "",
	)
)

// SanitizeError is returned for queries that cannot be made safe.
type SanitizeError struct {
	Type    string
	Message string
}

func (e *SanitizeError) Error() string {
	return e.Message
}

// QuerySanitizer strips markup and invisible characters from free-text queries.
type QuerySanitizer struct {
	maxLength int
}

func NewQuerySanitizer(maxLength int) *QuerySanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &QuerySanitizer{maxLength: maxLength}
}

// Sanitize removes HTML, script handlers and zero-width characters, then collapses
// whitespace. Case is preserved. Control characters and over-long results are rejected.
func (s *QuerySanitizer) Sanitize(query string) (string, error) {
	if query == "" {
		return "", nil
	}
	if !utf8.ValidString(query) {
		return "", &SanitizeError{Type: "invalid_encoding", Message: "query is not valid UTF-8"}
	}
	for _, r := range query {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return "", &SanitizeError{Type: "control_character", Message: "query contains a control character"}
		}
	}

	query = zeroWidthRune.Replace(query)
	query = scriptBlock.ReplaceAllString(query, " ")
	query = htmlTag.ReplaceAllString(query, " ")
	query = scriptPrefix.ReplaceAllString(query, "")
	query = eventHandler.ReplaceAllString(query, "")
	query = strings.Join(strings.Fields(query), " ")

	if utf8.RuneCountInString(query) > s.maxLength {
		return "", &SanitizeError{Type: "query_too_long", Message: "query exceeds maximum length"}
	}
	return query, nil
}
