package rest

import (
	"errors"
	"net/http"

	"post-search/domain"
	"post-search/logger"

	"github.com/labstack/echo/v4"
)

// Error codes returned in the "error" field of a failed response.
const (
	CodeInvalidRequest  = "invalid_request"
	CodePaginationRange = "pagination_range"
	CodeTimeout         = "timeout"
	CodeUnavailable     = "index_unavailable"
	CodeSyncInProgress  = "sync_in_progress"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal_error"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// mapDomainError converts a usecase error into a status code and response body.
// Internal errors never leak their text to the client.
func mapDomainError(err error) (int, ErrorResponse) {
	switch {
	case domain.IsPaginationRange(err):
		return http.StatusBadRequest, ErrorResponse{Error: CodePaginationRange, Message: rootMessage(err)}
	case domain.IsValidation(err):
		return http.StatusBadRequest, ErrorResponse{Error: CodeInvalidRequest, Message: rootMessage(err)}
	case domain.IsTimeout(err):
		return http.StatusGatewayTimeout, ErrorResponse{Error: CodeTimeout, Message: "search timed out"}
	case domain.IsUnavailable(err):
		return http.StatusServiceUnavailable, ErrorResponse{Error: CodeUnavailable, Message: "search index unavailable"}
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, ErrorResponse{Error: CodeSyncInProgress, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: CodeInternal, Message: "internal error"}
	}
}

// rootMessage returns the message of the classified error without usecase wrapping.
func rootMessage(err error) string {
	var v *domain.ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	var p *domain.PaginationRangeError
	if errors.As(err, &p) {
		return p.Error()
	}
	return err.Error()
}

func writeError(c echo.Context, err error) error {
	status, body := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.Logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}
	return c.JSON(status, body)
}

// HTTPErrorHandler renders echo errors (unknown routes, bad bodies) in the same
// shape as domain errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := CodeInvalidRequest
		switch {
		case he.Code == http.StatusNotFound:
			code = CodeNotFound
		case he.Code >= http.StatusInternalServerError:
			code = CodeInternal
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		_ = c.JSON(he.Code, ErrorResponse{Error: code, Message: msg})
		return
	}

	_ = writeError(c, err)
}
