// Package session owns the lifecycle of the background refresh machinery.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/dtroode/gophdate-session/internal/credential"
	"github.com/dtroode/gophdate-session/internal/event"
	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/service"
	"github.com/dtroode/gophdate-session/internal/token"
)

var errAlreadyStarted = errors.New("session manager already started")

// Config tunes a Manager. Zero values fall back to the service defaults.
type Config struct {
	CheckInterval     time.Duration
	Buffer            time.Duration
	ReconcileInterval time.Duration
	OnFailure         func(error)
}

// Manager wires the refresher, the scheduler and the reconciler around a
// credential store. Create one per process and share it.
type Manager struct {
	store      *credential.Store
	detector   *token.Detector
	bus        *event.Bus
	refresher  *service.Refresher
	scheduler  *service.Scheduler
	reconciler *service.Reconciler
	logger     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ oauth2.TokenSource = (*Manager)(nil)

func NewManager(
	cfg Config,
	backend model.AuthBackend,
	store *credential.Store,
	detector *token.Detector,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Manager {
	bus := event.NewBus()
	refresher := service.NewRefresher(backend, store, bus, metrics, logger.Named("refresher"))

	return &Manager{
		store:     store,
		detector:  detector,
		bus:       bus,
		refresher: refresher,
		scheduler: service.NewScheduler(store, detector, refresher, service.SchedulerConfig{
			CheckInterval: cfg.CheckInterval,
			Buffer:        cfg.Buffer,
			OnFailure:     cfg.OnFailure,
		}, metrics, logger.Named("scheduler")),
		reconciler: service.NewReconciler(store, cfg.ReconcileInterval, metrics, logger.Named("reconciler")),
		logger:     logger,
	}
}

// Start launches the scheduler and reconciler loops. They run until Stop
// is called or ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.scheduler.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.reconciler.Run(ctx)
	}()

	m.logger.Info("Session manager: started")
	return nil
}

// Stop cancels the background loops and waits for them to return. It is
// safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("Session manager: stopped")
}

// CheckNow asks the scheduler for an immediate check.
func (m *Manager) CheckNow() {
	m.scheduler.CheckNow()
}

// Subscribe registers h for token refresh notifications.
func (m *Manager) Subscribe(h event.Handler) func() {
	return m.bus.Subscribe(h)
}

// Session returns the stored session.
func (m *Manager) Session(ctx context.Context) (model.Session, error) {
	return m.store.Get(ctx)
}

// SchedulerState reports what the scheduler is doing.
func (m *Manager) SchedulerState() service.SchedulerState {
	return m.scheduler.State()
}

// Reconcile runs one reconciliation pass outside the regular cadence.
func (m *Manager) Reconcile(ctx context.Context) credential.Repair {
	return m.reconciler.RunOnce(ctx)
}

// Token returns the current access token as an oauth2 token.
func (m *Manager) Token() (*oauth2.Token, error) {
	return m.TokenContext(context.Background())
}

// TokenContext returns the current access token, refreshing it first when
// it is within the expiry buffer. When another refresh is already running
// the stored token is returned as long as it has not actually expired.
func (m *Manager) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	session, err := m.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !session.Valid() {
		return nil, model.ErrNoSession
	}

	if m.detector.IsExpired(session.AccessToken, m.scheduler.Buffer()) {
		refreshed, err := m.refresher.Refresh(ctx, session.RefreshToken)
		switch {
		case err == nil:
			session = refreshed
		case errors.Is(err, model.ErrRefreshInFlight) && !m.detector.IsExpired(session.AccessToken, 0):
		default:
			return nil, err
		}
	}

	expiry, err := m.detector.ExpiresAt(session.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read token expiry: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}
