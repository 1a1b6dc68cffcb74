package rest

import (
	"github.com/labstack/echo/v4"
)

// NewRouter builds the echo instance with validation, error rendering and every
// route registered. Middleware runs in the given order before each handler.
func NewRouter(h *Handler, middleware ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Use(middleware...)

	RegisterRoutes(e, h)
	return e
}

func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)

	search := e.Group("/v1/search")
	search.GET("", h.Search)
	search.GET("/suggest", h.Suggest)
	search.GET("/popular", h.Popular)
	search.GET("/categories", h.Categories)
	search.POST("/click", h.Click)

	sync := e.Group("/v1/sync")
	sync.GET("/status", h.SyncStatus)
	sync.POST("", h.TriggerSync)
}
