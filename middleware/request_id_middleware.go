package middleware

import (
	"post-search/logger"

	"github.com/labstack/echo/v4"
)

// RequestID copies or creates the X-Request-ID header and stores it on the
// request context for logger.FromContext.
func RequestID(newID func() string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = newID()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(c.Request().WithContext(logger.WithRequestID(c.Request().Context(), id)))
			return next(c)
		}
	}
}
