package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophdate-session/internal/api/rest"
	"github.com/dtroode/gophdate-session/internal/authtest"
	"github.com/dtroode/gophdate-session/internal/event"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/mocks"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/testutil"
	"github.com/dtroode/gophdate-session/internal/token"
)

type stubRefresher struct {
	calls  atomic.Int32
	tokens chan string
	err    error
}

func (s *stubRefresher) Refresh(_ context.Context, refreshToken string) (model.Session, error) {
	s.calls.Add(1)
	if s.tokens != nil {
		s.tokens <- refreshToken
	}
	return model.Session{}, s.err
}

type failureRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *failureRecorder) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *failureRecorder) all() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func TestScheduler_Check(t *testing.T) {
	issuer := token.NewIssuer("secret", time.Hour, 24*time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	detector := token.NewDetectorWithClock(func() time.Time { return now })

	soon, err := issuer.AccessTokenExpiringAt("u1", now.Add(2*time.Minute))
	require.NoError(t, err)
	later, err := issuer.AccessTokenExpiringAt("u1", now.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name        string
		session     model.Session
		wantRefresh bool
	}{
		{name: "no session", session: model.Session{}},
		{name: "fresh token", session: model.Session{AccessToken: later, RefreshToken: "r"}},
		{name: "expiring within buffer", session: model.Session{AccessToken: soon, RefreshToken: "r"}, wantRefresh: true},
		{name: "malformed token", session: model.Session{AccessToken: "garbage", RefreshToken: "r"}, wantRefresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewCredentialStore(t)
			store.On("Get", mock.Anything).Return(tt.session, nil)
			refresher := &stubRefresher{}

			s := NewScheduler(store, detector, refresher, SchedulerConfig{}, metrics.NewNoop(), testutil.MakeNoopLogger())
			s.Check(context.Background())

			if tt.wantRefresh {
				assert.Equal(t, int32(1), refresher.calls.Load())
			} else {
				assert.Zero(t, refresher.calls.Load())
			}
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestScheduler_Check_FailureGoesToCallback(t *testing.T) {
	ctx := context.Background()
	srv := authtest.NewServer(sampleUser())
	defer srv.Close()
	srv.FailNextRefreshes(1)

	store := newMemoryStore()
	expired, err := srv.Issuer.AccessTokenExpiringAt("u1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), expired, refresh))

	var failures failureRecorder
	refresher := NewRefresher(rest.New(srv.URL, nil, testutil.MakeNoopLogger()), store, event.NewBus(), metrics.NewNoop(), testutil.MakeNoopLogger())
	s := NewScheduler(store, token.NewDetector(), refresher, SchedulerConfig{OnFailure: failures.record}, metrics.NewNoop(), testutil.MakeNoopLogger())

	s.Check(ctx)

	errs := failures.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], model.ErrBackendRejected)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, expired, stored.AccessToken)
	assert.Equal(t, refresh, stored.RefreshToken)

	s.Check(ctx)
	assert.Len(t, failures.all(), 1, "next check retries and succeeds")
	stored, err = store.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, expired, stored.AccessToken)
}

func TestScheduler_Check_InFlightIsNotAFailure(t *testing.T) {
	store := mocks.NewCredentialStore(t)
	store.On("Get", mock.Anything).Return(model.Session{AccessToken: "garbage", RefreshToken: "r"}, nil)

	var failures failureRecorder
	refresher := &stubRefresher{err: model.ErrRefreshInFlight}
	s := NewScheduler(store, token.NewDetector(), refresher, SchedulerConfig{OnFailure: failures.record}, metrics.NewNoop(), testutil.MakeNoopLogger())

	s.Check(context.Background())
	assert.Empty(t, failures.all())
}

func TestScheduler_Check_StoreError(t *testing.T) {
	store := mocks.NewCredentialStore(t)
	store.On("Get", mock.Anything).Return(model.Session{}, errors.New("unreadable"))

	var failures failureRecorder
	refresher := &stubRefresher{}
	s := NewScheduler(store, token.NewDetector(), refresher, SchedulerConfig{OnFailure: failures.record}, metrics.NewNoop(), testutil.MakeNoopLogger())

	s.Check(context.Background())
	assert.Len(t, failures.all(), 1)
	assert.Zero(t, refresher.calls.Load())
}

func TestScheduler_Run_ChecksOnTickAndOnDemand(t *testing.T) {
	store := mocks.NewCredentialStore(t)
	store.On("Get", mock.Anything).Return(model.Session{AccessToken: "garbage", RefreshToken: "r"}, nil)

	refresher := &stubRefresher{tokens: make(chan string, 16)}
	s := NewScheduler(store, token.NewDetector(), refresher, SchedulerConfig{CheckInterval: time.Hour}, metrics.NewNoop(), testutil.MakeNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-refresher.tokens:
	case <-time.After(2 * time.Second):
		t.Fatal("expected initial check")
	}

	s.CheckNow()
	select {
	case got := <-refresher.tokens:
		assert.Equal(t, "r", got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected check after CheckNow")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestScheduler_CheckNow_DoesNotBlock(t *testing.T) {
	s := NewScheduler(nil, nil, nil, SchedulerConfig{}, metrics.NewNoop(), testutil.MakeNoopLogger())
	for i := 0; i < 10; i++ {
		s.CheckNow()
	}
	assert.Len(t, s.checkNow, 1)
	assert.Equal(t, DefaultExpiryBuffer, s.Buffer())
}

func TestSchedulerState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "checking", StateChecking.String())
	assert.Equal(t, "executing", StateExecuting.String())
}
