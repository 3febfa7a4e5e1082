package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dtroode/gophdate-session/internal/event"
	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/model"
)

// Refresher exchanges a refresh token for a new session. At most one
// exchange runs at a time; a concurrent call is rejected, not queued.
type Refresher struct {
	backend  model.AuthBackend
	store    model.CredentialStore
	bus      *event.Bus
	metrics  *metrics.Metrics
	logger   *logger.Logger
	inFlight atomic.Bool
}

func NewRefresher(
	backend model.AuthBackend,
	store model.CredentialStore,
	bus *event.Bus,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Refresher {
	return &Refresher{
		backend: backend,
		store:   store,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
	}
}

// InFlight reports whether a refresh is currently running.
func (r *Refresher) InFlight() bool {
	return r.inFlight.Load()
}

// Refresh calls the backend, stores the new session and notifies
// subscribers. It returns model.ErrRefreshInFlight without touching the
// network when another refresh has not finished yet. On failure the stored
// session is left as it was.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	if refreshToken == "" {
		return model.Session{}, model.ErrNoRefreshToken
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		r.metrics.ObserveRefresh(metrics.RefreshSkipped)
		r.logger.Debug("Refresher: refresh already in flight, skipping")
		return model.Session{}, model.ErrRefreshInFlight
	}
	defer r.inFlight.Store(false)

	r.logger.Debug("Refresher: refreshing tokens")

	result, err := r.backend.Refresh(ctx, refreshToken)
	if err != nil {
		r.metrics.ObserveRefresh(metrics.RefreshFailure)
		r.logger.Error("Refresher: backend refresh failed",
			"error", err.Error())
		return model.Session{}, fmt.Errorf("failed to refresh tokens: %w", err)
	}

	err = r.store.Set(ctx, result.User, result.AccessToken, result.RefreshToken)
	if err != nil {
		r.metrics.ObserveRefresh(metrics.RefreshFailure)
		r.logger.Error("Refresher: failed to store refreshed session",
			"user_id", result.User.ID,
			"error", err.Error())
		return model.Session{}, fmt.Errorf("failed to store refreshed session: %w", err)
	}

	r.bus.Publish(event.TokensRefreshed{User: result.User})
	r.metrics.ObserveRefresh(metrics.RefreshSuccess)

	r.logger.Info("Refresher: tokens refreshed",
		"user_id", result.User.ID)

	user := result.User
	return model.Session{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         &user,
	}, nil
}
