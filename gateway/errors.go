package gateway

import (
	"errors"

	"post-search/domain"
	"post-search/driver"
)

// searchError classifies a driver failure from the index into a domain error.
func searchError(op string, err error) error {
	var de *driver.DriverError
	if errors.As(err, &de) {
		switch {
		case de.Timeout:
			return &domain.TimeoutError{Op: op, Err: de.Error()}
		case de.Unavailable:
			return &domain.IndexUnavailableError{Op: op, Err: de.Error()}
		case de.NotFound:
			return domain.ErrNotFound
		}
	}
	return &domain.SearchEngineError{Op: op, Err: err.Error()}
}

// repositoryError classifies a driver failure from a store into a domain error.
func repositoryError(op string, err error) error {
	var de *driver.DriverError
	if errors.As(err, &de) && de.Timeout {
		return &domain.TimeoutError{Op: op, Err: de.Error()}
	}
	return &domain.RepositoryError{Op: op, Err: err.Error()}
}
