package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophdate-session/internal/mocks"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/state"
	"github.com/dtroode/gophdate-session/internal/testutil"
)

func TestAuth_Login_Success(t *testing.T) {
	ctx := context.Background()
	backend := mocks.NewAuthBackend(t)
	backend.On("Login", mock.Anything, "ann@example.com", "pw").
		Return(model.AuthResult{User: sampleUser(), AccessToken: "a", RefreshToken: "r"}, nil)

	store := newMemoryStore()
	st := state.NewStore()
	var phases []bool
	st.Subscribe(func(s state.State) { phases = append(phases, s.IsLoading) })

	a := NewAuth(backend, store, st, testutil.MakeNoopLogger())
	session, err := a.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a", session.AccessToken)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", stored.RefreshToken)

	assert.Equal(t, []bool{true, false}, phases)
	assert.True(t, st.State().IsAuthenticated)
	assert.Equal(t, "u1", st.State().User.ID)
}

func TestAuth_Login_Rejected(t *testing.T) {
	ctx := context.Background()
	backend := mocks.NewAuthBackend(t)
	backend.On("Login", mock.Anything, "ann@example.com", "bad").
		Return(model.AuthResult{}, model.ErrBackendRejected)

	store := mocks.NewCredentialStore(t)
	st := state.NewStore()

	a := NewAuth(backend, store, st, testutil.MakeNoopLogger())
	_, err := a.Login(ctx, "ann@example.com", "bad")
	require.ErrorIs(t, err, model.ErrBackendRejected)

	assert.False(t, st.State().IsAuthenticated)
	assert.NotEmpty(t, st.State().Error)
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuth_Logout(t *testing.T) {
	ctx := context.Background()
	backend := mocks.NewAuthBackend(t)
	backend.On("Logout", mock.Anything, "r").Return(errors.New("offline"))

	store := newMemoryStore()
	require.NoError(t, store.Set(ctx, sampleUser(), "a", "r"))
	st := state.NewStore()
	st.Dispatch(state.Action{Type: state.InitComplete, User: &model.UserProfile{ID: "u1"}, AccessToken: "a"})

	a := NewAuth(backend, store, st, testutil.MakeNoopLogger())
	require.NoError(t, a.Logout(ctx))

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
	assert.False(t, st.State().IsAuthenticated)
	assert.True(t, st.State().Initialized)
}

func TestAuth_Logout_WithoutSessionSkipsBackend(t *testing.T) {
	backend := mocks.NewAuthBackend(t)
	a := NewAuth(backend, newMemoryStore(), state.NewStore(), testutil.MakeNoopLogger())

	require.NoError(t, a.Logout(context.Background()))
	backend.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestAuth_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	updated := sampleUser()
	updated.Bio = "climber"

	backend := mocks.NewAuthBackend(t)
	backend.On("UpdateProfile", mock.Anything, "a", updated).Return(updated, nil)

	store := newMemoryStore()
	require.NoError(t, store.Set(ctx, sampleUser(), "a", "r"))
	st := state.NewStore()

	a := NewAuth(backend, store, st, testutil.MakeNoopLogger())
	got, err := a.UpdateProfile(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "climber", got.Bio)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "climber", stored.User.Bio)
	assert.Equal(t, "r", stored.RefreshToken)
	assert.Equal(t, "climber", st.State().User.Bio)
}

func TestAuth_UpdateProfile_NoSession(t *testing.T) {
	backend := mocks.NewAuthBackend(t)
	a := NewAuth(backend, newMemoryStore(), state.NewStore(), testutil.MakeNoopLogger())

	_, err := a.UpdateProfile(context.Background(), sampleUser())
	require.ErrorIs(t, err, model.ErrNoSession)
}
