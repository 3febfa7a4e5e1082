// Package control serves the local session control API.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/service"
)

// SessionController exposes the session manager operations the API needs.
type SessionController interface {
	Session(ctx context.Context) (model.Session, error)
	SchedulerState() service.SchedulerState
	CheckNow()
}

// Authenticator ends the session.
type Authenticator interface {
	Logout(ctx context.Context) error
}

// SessionResponse is the body of GET /session.
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *model.UserProfile `json:"user,omitempty"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
	Scheduler     string             `json:"scheduler"`
}

var _ model.Server = (*Server)(nil)

// Server is the echo based control API.
type Server struct {
	echo      *echo.Echo
	addr      string
	sessions  SessionController
	auth      Authenticator
	inspector model.TokenInspector
	logger    *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(
	addr string,
	sessions SessionController,
	auth Authenticator,
	inspector model.TokenInspector,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		addr:      addr,
		sessions:  sessions,
		auth:      auth,
		inspector: inspector,
		logger:    logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error.Error())
			}
			s.logger.Debug("Control server: request handled", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	e.GET("/session", s.session)
	e.POST("/session/check", s.check)
	e.POST("/session/logout", s.logout)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured address using the provided security layer.
func (s *Server) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.echo.Listener = listener
	err = s.echo.Start("")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.addr
}

// ListenerAddr returns the bound address once Start has opened the listener.
func (s *Server) ListenerAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) session(c echo.Context) error {
	session, err := s.sessions.Session(c.Request().Context())
	if err != nil {
		s.logger.Error("Control server: failed to read session",
			"error", err.Error())
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session storage unavailable")
	}

	resp := SessionResponse{
		Authenticated: session.Valid(),
		User:          session.User,
		Scheduler:     s.sessions.SchedulerState().String(),
	}
	if session.AccessToken != "" {
		if exp, err := s.inspector.ExpiresAt(session.AccessToken); err == nil {
			resp.ExpiresAt = &exp
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) check(c echo.Context) error {
	s.sessions.CheckNow()
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) logout(c echo.Context) error {
	if err := s.auth.Logout(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear session")
	}
	return c.NoContent(http.StatusNoContent)
}
