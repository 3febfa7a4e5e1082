package service

import (
	"context"
	"fmt"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/state"
)

// Auth runs the interactive session flows and keeps the UI state in step
// with the credential store.
type Auth struct {
	backend model.AuthBackend
	store   model.CredentialStore
	state   *state.Store
	logger  *logger.Logger
}

func NewAuth(backend model.AuthBackend, store model.CredentialStore, state *state.Store, logger *logger.Logger) *Auth {
	return &Auth{
		backend: backend,
		store:   store,
		state:   state,
		logger:  logger,
	}
}

// Login exchanges credentials for a session and persists it.
func (a *Auth) Login(ctx context.Context, email, password string) (model.Session, error) {
	a.logger.Debug("Auth service: starting login",
		"email", email)
	a.state.Dispatch(state.Action{Type: state.LoginStart})

	result, err := a.backend.Login(ctx, email, password)
	if err != nil {
		a.logger.Info("Auth service: login rejected",
			"email", email,
			"error", err.Error())
		a.state.Dispatch(state.Action{Type: state.LoginFailure, Err: err})
		return model.Session{}, fmt.Errorf("failed to login: %w", err)
	}

	err = a.store.Set(ctx, result.User, result.AccessToken, result.RefreshToken)
	if err != nil {
		a.logger.Error("Auth service: failed to store session",
			"user_id", result.User.ID,
			"error", err.Error())
		a.state.Dispatch(state.Action{Type: state.LoginFailure, Err: err})
		return model.Session{}, fmt.Errorf("failed to store session: %w", err)
	}

	user := result.User
	a.state.Dispatch(state.Action{Type: state.LoginSuccess, User: &user, AccessToken: result.AccessToken})

	a.logger.Info("Auth service: login completed",
		"user_id", user.ID)

	return model.Session{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         &user,
	}, nil
}

// Logout revokes the refresh token on a best-effort basis and clears the
// stored session. Local credentials are cleared even when the backend
// call fails.
func (a *Auth) Logout(ctx context.Context) error {
	session, err := a.store.Get(ctx)
	if err != nil {
		a.logger.Warn("Auth service: failed to read session before logout",
			"error", err.Error())
	}

	if session.RefreshToken != "" {
		if err := a.backend.Logout(ctx, session.RefreshToken); err != nil {
			a.logger.Warn("Auth service: backend logout failed",
				"error", err.Error())
		}
	}

	err = a.store.Clear(ctx)
	a.state.Dispatch(state.Action{Type: state.Logout})
	if err != nil {
		a.logger.Error("Auth service: failed to clear session",
			"error", err.Error())
		return fmt.Errorf("failed to clear session: %w", err)
	}

	a.logger.Info("Auth service: logged out")
	return nil
}

// UpdateProfile saves user on the backend and stores the returned copy
// alongside the current tokens.
func (a *Auth) UpdateProfile(ctx context.Context, user model.UserProfile) (model.UserProfile, error) {
	session, err := a.store.Get(ctx)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to read session: %w", err)
	}
	if !session.Valid() {
		return model.UserProfile{}, model.ErrNoSession
	}

	updated, err := a.backend.UpdateProfile(ctx, session.AccessToken, user)
	if err != nil {
		a.logger.Error("Auth service: failed to update profile",
			"user_id", user.ID,
			"error", err.Error())
		return model.UserProfile{}, fmt.Errorf("failed to update profile: %w", err)
	}

	err = a.store.Set(ctx, updated, session.AccessToken, "")
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to store profile: %w", err)
	}

	a.state.Dispatch(state.Action{Type: state.UpdateProfile, User: &updated})
	return updated, nil
}
