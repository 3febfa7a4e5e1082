package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dtroode/gophdate-session/internal/api/rest"
	"github.com/dtroode/gophdate-session/internal/authtest"
	"github.com/dtroode/gophdate-session/internal/credential"
	"github.com/dtroode/gophdate-session/internal/event"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/service"
	"github.com/dtroode/gophdate-session/internal/storage/memory"
	"github.com/dtroode/gophdate-session/internal/testutil"
	"github.com/dtroode/gophdate-session/internal/token"
)

func sampleUser() model.UserProfile {
	return model.UserProfile{ID: "u1", Email: "ann@example.com", Name: "Ann"}
}

func newManager(t *testing.T, cfg Config) (*Manager, *credential.Store, *authtest.Server) {
	t.Helper()
	srv := authtest.NewServer(sampleUser())
	t.Cleanup(srv.Close)

	log := testutil.MakeNoopLogger()
	store := credential.NewStore(memory.New("durable"), memory.New("cookie"), log)
	m := NewManager(cfg, rest.New(srv.URL, nil, log), store, token.NewDetector(), metrics.NewNoop(), log)
	return m, store, srv
}

func TestManager_StartStop(t *testing.T) {
	m, _, _ := newManager(t, Config{})

	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), errAlreadyStarted)

	m.Stop()
	m.Stop()
	require.NoError(t, m.Start(context.Background()), "restart after stop")
	m.Stop()
}

func TestManager_CheckNowRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	m, store, srv := newManager(t, Config{CheckInterval: time.Hour, ReconcileInterval: time.Hour})

	refreshed := make(chan event.TokensRefreshed, 4)
	unsubscribe := m.Subscribe(func(e event.TokensRefreshed) { refreshed <- e })
	defer unsubscribe()

	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	expired, err := srv.Issuer.AccessTokenExpiringAt("u1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), expired, refresh))

	m.CheckNow()

	select {
	case e := <-refreshed:
		assert.Equal(t, "u1", e.User.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("expected tokens to be refreshed")
	}

	session, err := m.Session(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, expired, session.AccessToken)
	assert.Eventually(t, func() bool { return m.SchedulerState() == service.StateIdle }, time.Second, 5*time.Millisecond)
}

func TestManager_Token(t *testing.T) {
	ctx := context.Background()
	m, store, srv := newManager(t, Config{})

	_, err := m.Token()
	require.ErrorIs(t, err, model.ErrNoSession)

	access, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), access, refresh))

	tok, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, access, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Valid())
	assert.Zero(t, srv.RefreshCalls.Load())
}

func TestManager_Token_RefreshesWithinBuffer(t *testing.T) {
	ctx := context.Background()
	m, store, srv := newManager(t, Config{Buffer: 5 * time.Minute})

	soon, err := srv.Issuer.AccessTokenExpiringAt("u1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), soon, refresh))

	tok, err := m.TokenContext(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, soon, tok.AccessToken)
	assert.Equal(t, int32(1), srv.RefreshCalls.Load())
	assert.True(t, tok.Expiry.After(time.Now().Add(5*time.Minute)))
}

func TestManager_Token_RefreshFailure(t *testing.T) {
	ctx := context.Background()
	m, store, srv := newManager(t, Config{})
	srv.FailNextRefreshes(1)

	expired, err := srv.Issuer.AccessTokenExpiringAt("u1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), expired, refresh))

	_, err = m.TokenContext(ctx)
	require.ErrorIs(t, err, model.ErrBackendRejected)
}

func TestManager_AsOAuth2TokenSource(t *testing.T) {
	ctx := context.Background()
	m, store, srv := newManager(t, Config{})
	access, refresh := srv.IssuePair()
	require.NoError(t, store.Set(ctx, sampleUser(), access, refresh))

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	client := oauth2.NewClient(ctx, m)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer "+access, gotAuth)
}

func TestManager_Reconcile(t *testing.T) {
	ctx := context.Background()
	log := testutil.MakeNoopLogger()
	durable := memory.New("durable")
	cookie := memory.New("cookie")
	store := credential.NewStore(durable, cookie, log)
	m := NewManager(Config{}, nil, store, token.NewDetector(), metrics.NewNoop(), log)

	require.NoError(t, cookie.Write(ctx, model.Record{AuthToken: "Y", RefreshToken: "rY"}))
	assert.Equal(t, credential.RepairDurableFromCookie, m.Reconcile(ctx))

	got, err := durable.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Y", got.AuthToken)
}
