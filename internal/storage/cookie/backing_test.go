package cookie

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophdate-session/internal/model"
)

func newBacking(t *testing.T, origin string) *Backing {
	t.Helper()
	jar, err := NewJar()
	require.NoError(t, err)
	b, err := New(jar, origin, 0)
	require.NoError(t, err)
	return b
}

func TestNew(t *testing.T) {
	jar, err := NewJar()
	require.NoError(t, err)

	b, err := New(jar, "http://localhost:3000", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, b.ttl)
	assert.Equal(t, "cookie", b.Name())

	b, err = New(jar, "http://localhost:3000", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, b.ttl)

	_, err = New(jar, "localhost", 0)
	assert.Error(t, err)
}

func TestBacking_Roundtrip(t *testing.T) {
	ctx := context.Background()
	b := newBacking(t, "http://localhost:3000")

	rec := model.Record{
		AuthToken:    "header.payload.sig",
		RefreshToken: "refresh-1",
		User:         `{"id":"u1","name":"Ann Lee","bio":"likes \"quotes\"; and, commas"}`,
		UserID:       "u1",
	}
	require.NoError(t, b.Write(ctx, rec))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestBacking_WriteExpiresEmptyFields(t *testing.T) {
	ctx := context.Background()
	b := newBacking(t, "http://localhost:3000")

	require.NoError(t, b.Write(ctx, model.Record{AuthToken: "a", RefreshToken: "r", User: `{}`, UserID: "u1"}))
	require.NoError(t, b.Write(ctx, model.Record{AuthToken: "b"}))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Record{AuthToken: "b"}, got)
}

func TestBacking_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newBacking(t, "http://localhost:3000")

	require.NoError(t, b.Write(ctx, model.Record{AuthToken: "a", RefreshToken: "r"}))
	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Clear(ctx))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestBacking_ReadIgnoresForeignCookies(t *testing.T) {
	ctx := context.Background()
	b := newBacking(t, "http://localhost:3000")

	b.jar.SetCookies(b.origin, []*http.Cookie{
		{Name: "analytics", Value: "50%off", Path: "/"},
		{Name: "theme", Value: "dark", Path: "/"},
	})

	empty, err := b.Read(ctx)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	require.NoError(t, b.Write(ctx, model.Record{AuthToken: "a", RefreshToken: "r"}))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Record{AuthToken: "a", RefreshToken: "r"}, got)
}

func TestBacking_CookiesSentToOrigin(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = map[string]string{}
		for _, c := range r.Cookies() {
			received[c.Name] = c.Value
		}
	}))
	defer srv.Close()

	jar, err := NewJar()
	require.NoError(t, err)
	b, err := New(jar, srv.URL, time.Hour)
	require.NoError(t, err)

	require.NoError(t, b.Write(context.Background(), model.Record{AuthToken: "a", RefreshToken: "r", UserID: "u1"}))

	client := &http.Client{Jar: jar}
	resp, err := client.Get(srv.URL + "/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "a", received[model.KeyAuthToken])
	assert.Equal(t, "r", received[model.KeyRefreshToken])
	assert.Equal(t, "u1", received[model.KeyUserID])
}
