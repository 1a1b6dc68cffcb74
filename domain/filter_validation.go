package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxFilterTags   = 10
	maxFilterTagLen = 100
)

var validTagRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-_]+$`)

// ValidateFilterTags validates tag filters before they are turned into index clauses.
func ValidateFilterTags(tags []string) error {
	if len(tags) > maxFilterTags {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("at most %d allowed, got %d", maxFilterTags, len(tags))}
	}

	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return &ValidationError{Field: "tags", Reason: "empty tag"}
		}
		if len(tag) > maxFilterTagLen {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag longer than %d bytes", maxFilterTagLen)}
		}
		for _, r := range tag {
			if unicode.IsControl(r) {
				return &ValidationError{Field: "tags", Reason: "control characters not allowed"}
			}
		}
		if !validTagRegex.MatchString(tag) {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("invalid characters in %q", tag)}
		}
	}

	return nil
}
