// Package authtest provides an in-process auth backend for tests.
package authtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/token"
)

// Password accepted by the fake login endpoint.
const Password = "correct-horse"

// Server is a fake auth backend issuing real HS256 tokens. Refresh tokens
// are single use, as with most production backends.
type Server struct {
	*httptest.Server

	Issuer *token.Issuer

	mu       sync.Mutex
	user     model.UserProfile
	usedJTIs map[string]bool
	failNext int
	gate     chan struct{}

	RefreshCalls atomic.Int32
	LogoutCalls  atomic.Int32
	LastHeaders  atomic.Value
}

// NewServer starts a fake backend serving user.
func NewServer(user model.UserProfile) *Server {
	s := &Server{
		Issuer:   token.NewIssuer("authtest-secret", 15*time.Minute, 24*time.Hour),
		user:     user,
		usedJTIs: make(map[string]bool),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/auth/login", s.handleLogin)
	e.POST("/auth/refresh", s.handleRefresh)
	e.POST("/auth/logout", s.handleLogout)
	e.PUT("/users/me", s.handleProfile)

	s.Server = httptest.NewServer(e)
	return s
}

// FailNextRefreshes makes the next n refresh calls answer 401.
func (s *Server) FailNextRefreshes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// HoldRefreshes blocks refresh handlers until the returned function is called.
func (s *Server) HoldRefreshes() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetUser replaces the profile returned by the backend.
func (s *Server) SetUser(user model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// IssuePair mints a fresh token pair for the current user.
func (s *Server) IssuePair() (access, refresh string) {
	s.mu.Lock()
	userID := s.user.ID
	s.mu.Unlock()

	access, err := s.Issuer.AccessToken(userID)
	if err != nil {
		panic(err)
	}
	refresh, err = s.Issuer.RefreshToken(userID)
	if err != nil {
		panic(err)
	}
	return access, refresh
}

func (s *Server) handleLogin(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return writeJSON(c, http.StatusBadRequest, map[string]string{"message": "malformed body"})
	}

	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	if !strings.EqualFold(body.Email, user.Email) || body.Password != Password {
		return writeJSON(c, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	}

	return s.writePair(c, user)
}

func (s *Server) handleRefresh(c echo.Context) error {
	s.RefreshCalls.Add(1)
	s.LastHeaders.Store(c.Request().Header.Clone())

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return writeJSON(c, http.StatusBadRequest, map[string]string{"message": "malformed body"})
	}

	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		return writeJSON(c, http.StatusUnauthorized, map[string]string{"message": "refresh rejected"})
	}
	_, jti, err := s.Issuer.ParseRefreshToken(body.RefreshToken)
	if err != nil || s.usedJTIs[jti] {
		s.mu.Unlock()
		return writeJSON(c, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
	}
	s.usedJTIs[jti] = true
	user := s.user
	s.mu.Unlock()

	return s.writePair(c, user)
}

func (s *Server) handleLogout(c echo.Context) error {
	s.LogoutCalls.Add(1)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleProfile(c echo.Context) error {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
		return writeJSON(c, http.StatusUnauthorized, map[string]string{"message": "missing token"})
	}

	var user model.UserProfile
	if err := json.NewDecoder(c.Request().Body).Decode(&user); err != nil {
		return writeJSON(c, http.StatusBadRequest, map[string]string{"message": "malformed body"})
	}

	s.mu.Lock()
	user.ID = s.user.ID
	s.user = user
	s.mu.Unlock()

	return writeJSON(c, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) writePair(c echo.Context, user model.UserProfile) error {
	access, err := s.Issuer.AccessToken(user.ID)
	if err != nil {
		return writeJSON(c, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
	refresh, err := s.Issuer.RefreshToken(user.ID)
	if err != nil {
		return writeJSON(c, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}

	return writeJSON(c, http.StatusOK, model.AuthResult{User: user, AccessToken: access, RefreshToken: refresh})
}

func writeJSON(c echo.Context, status int, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.JSONBlob(status, data)
}
