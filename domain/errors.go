package domain

import (
	"errors"
	"fmt"
)

// RepositoryError represents an error from the repository layer.
type RepositoryError struct {
	Op  string
	Err string
}

func (e *RepositoryError) Error() string {
	return e.Op + ": " + e.Err
}

// SearchEngineError represents a non-classified error from the search engine layer.
type SearchEngineError struct {
	Op  string
	Err string
}

func (e *SearchEngineError) Error() string {
	return e.Op + ": " + e.Err
}

// ValidationError reports a malformed request. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// MappingError reports a source record that cannot be turned into an index document.
type MappingError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *MappingError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<missing>"
	}
	return fmt.Sprintf("mapping record %s: %s %s", id, e.Field, e.Reason)
}

// IndexUnavailableError reports that the search index could not be reached.
type IndexUnavailableError struct {
	Op  string
	Err string
}

func (e *IndexUnavailableError) Error() string {
	return "index unavailable: " + e.Op + ": " + e.Err
}

// TimeoutError reports an I/O call that exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err string
}

func (e *TimeoutError) Error() string {
	return "timeout: " + e.Op + ": " + e.Err
}

// PaginationRangeError reports a result window beyond the configured maximum offset.
type PaginationRangeError struct {
	Offset int
	Max    int
}

func (e *PaginationRangeError) Error() string {
	return fmt.Sprintf("pagination offset %d exceeds maximum %d", e.Offset, e.Max)
}

// ErrSyncInProgress is returned when another worker holds the sync lease.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrNotFound is returned by lookups that found nothing.
var ErrNotFound = errors.New("not found")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPaginationRange(err error) bool {
	var p *PaginationRangeError
	return errors.As(err, &p)
}

func IsUnavailable(err error) bool {
	var u *IndexUnavailableError
	return errors.As(err, &u)
}

func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

func IsMapping(err error) bool {
	var m *MappingError
	return errors.As(err, &m)
}
