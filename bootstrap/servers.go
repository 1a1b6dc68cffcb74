package bootstrap

import (
	"net/http"

	"post-search/config"
	"post-search/logger"
	appmiddleware "post-search/middleware"
	"post-search/rest"
	appOtel "post-search/utils/otel"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// newHTTPServer creates the REST server, speaking HTTP/1.1 and cleartext HTTP/2.
func newHTTPServer(app *App, cfg config.HTTPConfig, otelCfg appOtel.Config) *http.Server {
	e := newRouter(app.Handler(), cfg, otelCfg)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(e, &http2.Server{}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(h *rest.Handler, cfg config.HTTPConfig, otelCfg appOtel.Config) *echo.Echo {
	var mw []echo.MiddlewareFunc
	if otelCfg.Enabled {
		mw = append(mw,
			otelecho.Middleware(otelCfg.ServiceName),
			appmiddleware.OTelStatusMiddleware(),
		)
	}
	mw = append(mw,
		appmiddleware.RequestID(uuid.NewString),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/health"
			},
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				logger.FromContext(c.Request().Context()).Info("HTTP request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency", v.Latency,
					"error", v.Error)
				return nil
			},
		}),
		middleware.Recover(),
		middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: cfg.RequestTimeout,
		}),
	)
	return rest.NewRouter(h, mw...)
}
