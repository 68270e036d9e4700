// Package server exposes the guide over HTTP: the presentation pages, the
// dashboard chart data and the guided-search chat API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/TobiSchelling/GuideNaturel/internal/chat"
	"github.com/TobiSchelling/GuideNaturel/internal/config"
	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
)

// Chatbot runs guided-search conversations.
type Chatbot interface {
	Start() *chat.Reply
	Send(ctx context.Context, conversationID, message string) (*chat.Reply, error)
	Results(ctx context.Context, conversationID string, page int) (*chat.Reply, error)
}

// ChartSource builds dashboard chart payloads.
type ChartSource interface {
	Payload(ctx context.Context, info string) (any, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the server exposes.
type Deps struct {
	Bot     Chatbot
	Charts  ChartSource
	DB      Pinger
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Server is the HTTP server.
type Server struct {
	echo    *echo.Echo
	cfg     config.Server
	bot     Chatbot
	charts  ChartSource
	db      Pinger
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a Server with all routes registered.
func New(cfg config.Server, deps Deps) (*Server, error) {
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		bot:     deps.Bot,
		charts:  deps.Charts,
		db:      deps.DB,
		metrics: deps.Metrics,
		log:     deps.Logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Renderer = renderer
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.configureMiddleware()
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.echo.StaticFS("/static", staticSub)

	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/guide_naturel", s.handleGuide)
	s.echo.GET("/recherche", s.handleSearchPage)
	s.echo.GET("/apropos", s.handleAbout)
	s.echo.GET("/get_chart_data", s.handleChartData)

	g := s.echo.Group("/chat", s.chatRateLimiter(s.cfg.ChatRateLimit))
	g.POST("/start", s.handleChatStart)
	g.POST("/send", s.handleChatSend)
	g.GET("/results/:conversation_id/page/:page", s.handleChatResults)

	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	status := map[string]string{"status": "ok", "database": "ok"}
	if s.db != nil {
		if err := s.db.Ping(c.Request().Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			status["status"] = "degraded"
			status["database"] = "unavailable"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// Serve listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", "http://"+addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
