package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/model"
)

// Store persists the session across a durable backing and a cookie
// backing. It is the only writer of either backing.
type Store struct {
	mu      sync.Mutex
	durable model.Backing
	cookie  model.Backing
	logger  *logger.Logger
}

// NewStore creates a credential store over the two backings.
func NewStore(durable, cookie model.Backing, logger *logger.Logger) *Store {
	return &Store{
		durable: durable,
		cookie:  cookie,
		logger:  logger,
	}
}

// Set writes the session to both backings, one write per backing. An empty
// refreshToken keeps whatever refresh token each backing already holds.
func (s *Store) Set(ctx context.Context, user model.UserProfile, accessToken, refreshToken string) error {
	if accessToken == "" {
		return fmt.Errorf("access token is required: %w", model.ErrNoSession)
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	record := model.Record{
		AuthToken:    accessToken,
		RefreshToken: refreshToken,
		User:         string(userJSON),
		UserID:       DeriveUserID(string(userJSON)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, b := range s.backings() {
		if err := s.writeBacking(ctx, b, record); err != nil {
			s.logger.Error("Credential store: failed to write backing",
				"backing", b.Name(),
				"error", err.Error())
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Store) writeBacking(ctx context.Context, b model.Backing, record model.Record) error {
	if record.RefreshToken == "" {
		existing, err := b.Read(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s backing: %w", b.Name(), err)
		}
		record.RefreshToken = existing.RefreshToken
	}

	if err := b.Write(ctx, record); err != nil {
		return fmt.Errorf("failed to write %s backing: %w", b.Name(), err)
	}
	return nil
}

// Get returns the stored session, preferring the durable backing field by
// field. A corrupted user snapshot or a partial session clears everything
// and yields the empty session.
func (s *Store) Get(ctx context.Context) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	durable, durableErr := s.durable.Read(ctx)
	if durableErr != nil {
		s.logger.Warn("Credential store: durable backing unreadable, falling back to cookies",
			"backing", s.durable.Name(),
			"error", durableErr.Error())
	}
	cookie, cookieErr := s.cookie.Read(ctx)
	if cookieErr != nil {
		s.logger.Warn("Credential store: cookie backing unreadable",
			"backing", s.cookie.Name(),
			"error", cookieErr.Error())
	}
	if durableErr != nil && cookieErr != nil {
		return model.Session{}, fmt.Errorf("failed to read credentials: %w", errors.Join(durableErr, cookieErr))
	}

	merged := model.Record{
		AuthToken:    firstNonEmpty(durable.AuthToken, cookie.AuthToken),
		RefreshToken: firstNonEmpty(durable.RefreshToken, cookie.RefreshToken),
		User:         firstNonEmpty(durable.User, cookie.User),
	}
	if merged.IsZero() {
		return model.Session{}, nil
	}

	session := model.Session{
		AccessToken:  merged.AuthToken,
		RefreshToken: merged.RefreshToken,
	}

	if merged.User != "" {
		var user model.UserProfile
		if err := json.Unmarshal([]byte(merged.User), &user); err != nil {
			s.logger.Error("Credential store: stored user is corrupted, clearing credentials",
				"error", err.Error())
			_ = s.clearLocked(ctx)
			return model.Session{}, nil
		}
		session.User = &user
	}

	if !session.Valid() {
		s.logger.Warn("Credential store: partial session found, clearing credentials",
			"has_access_token", session.AccessToken != "",
			"has_refresh_token", session.RefreshToken != "")
		_ = s.clearLocked(ctx)
		return model.Session{}, nil
	}

	return session, nil
}

// Clear removes all credential fields from both backings.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	var errs []error
	for _, b := range s.backings() {
		if err := b.Clear(ctx); err != nil {
			s.logger.Error("Credential store: failed to clear backing",
				"backing", b.Name(),
				"error", err.Error())
			errs = append(errs, fmt.Errorf("failed to clear %s backing: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Reconcile runs one consistency pass between the backings.
func (s *Store) Reconcile(ctx context.Context) (Repair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reconcile(ctx, s.durable, s.cookie)
}

func (s *Store) backings() []model.Backing {
	return []model.Backing{s.durable, s.cookie}
}

// DeriveUserID extracts the user identifier from a serialized profile,
// accepting both "id" and "_id".
func DeriveUserID(userJSON string) string {
	if id := gjson.Get(userJSON, "id"); id.Exists() && id.String() != "" {
		return id.String()
	}
	return gjson.Get(userJSON, "_id").String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
