package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/GuideNaturel/internal/config"
)

func (s *Server) configureMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
	}))
}

// requestLogger logs every request and feeds the HTTP metrics.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	log := s.log.With().Str("component", "http").Logger()

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			if s.metrics != nil {
				s.metrics.ObserveHTTP(v.Method, route, strconv.Itoa(v.Status), v.Latency)
			}

			ev := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				ev = log.Error()
			case v.Status >= http.StatusBadRequest:
				ev = log.Warn()
			case route == "/health" || route == "/metrics" || route == "/static/*":
				ev = log.Debug()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Str("route", route).
				Int("status", v.Status).
				Float64("latency_ms", float64(v.Latency)/float64(time.Millisecond)).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// chatRateLimiter limits chat requests per client IP. A zero rate disables it.
func (s *Server) chatRateLimiter(cfg config.RateLimit) echo.MiddlewareFunc {
	if cfg.Rate <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.Rate),
				Burst:     cfg.Burst,
				ExpiresIn: cfg.ExpiresIn,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return s.handleError(c, err, KindBadRequest, "Client non identifiable.", http.StatusForbidden)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return s.handleError(c, err, KindRateLimited, "Trop de messages envoyés. Patientez un instant.", http.StatusTooManyRequests)
		},
	})
}
