package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/model"
)

// Scheduler defaults.
const (
	DefaultCheckInterval = 60 * time.Second
	DefaultExpiryBuffer  = 300 * time.Second
)

// SchedulerState is the observable phase of a Scheduler.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateChecking
	StateExecuting
)

func (s SchedulerState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateExecuting:
		return "executing"
	default:
		return "idle"
	}
}

type sessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.Session, error)
}

// SchedulerConfig tunes a Scheduler. Zero durations fall back to defaults.
type SchedulerConfig struct {
	CheckInterval time.Duration
	Buffer        time.Duration
	// OnFailure receives refresh errors. It may be nil.
	OnFailure func(error)
}

// Scheduler periodically checks the stored access token and refreshes it
// shortly before it expires.
type Scheduler struct {
	store     model.CredentialStore
	inspector model.TokenInspector
	refresher sessionRefresher
	interval  time.Duration
	buffer    time.Duration
	onFailure func(error)
	checkNow  chan struct{}
	state     atomic.Int32
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewScheduler(
	store model.CredentialStore,
	inspector model.TokenInspector,
	refresher sessionRefresher,
	cfg SchedulerConfig,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultExpiryBuffer
	}

	return &Scheduler{
		store:     store,
		inspector: inspector,
		refresher: refresher,
		interval:  cfg.CheckInterval,
		buffer:    cfg.Buffer,
		onFailure: cfg.OnFailure,
		checkNow:  make(chan struct{}, 1),
		metrics:   metrics,
		logger:    logger,
	}
}

// State returns the current phase.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// Buffer returns how long before expiry a token counts as expired.
func (s *Scheduler) Buffer() time.Duration {
	return s.buffer
}

// CheckNow requests an out-of-band check. It never blocks; requests made
// while one is already pending are coalesced.
func (s *Scheduler) CheckNow() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// Run checks once, then on every tick and every CheckNow request, until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler: started",
		"interval", s.interval.String(),
		"buffer", s.buffer.String())

	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler: stopped")
			return
		case <-ticker.C:
			s.Check(ctx)
		case <-s.checkNow:
			s.Check(ctx)
		}
	}
}

// Check runs one check-and-maybe-refresh cycle. Failures are reported to
// OnFailure and logged; the caller's cadence is not affected.
func (s *Scheduler) Check(ctx context.Context) {
	s.state.Store(int32(StateChecking))
	defer s.state.Store(int32(StateIdle))
	s.metrics.ObserveCheck()

	session, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error("Scheduler: failed to read session",
			"error", err.Error())
		s.fail(err)
		return
	}
	if session.AccessToken == "" {
		return
	}
	if !s.inspector.IsExpired(session.AccessToken, s.buffer) {
		return
	}

	s.logger.Debug("Scheduler: access token expires soon, refreshing")
	s.state.Store(int32(StateExecuting))

	_, err = s.refresher.Refresh(ctx, session.RefreshToken)
	if errors.Is(err, model.ErrRefreshInFlight) {
		return
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *Scheduler) fail(err error) {
	if s.onFailure != nil {
		s.onFailure(err)
	}
}
