package model

import "context"

// CredentialStore persists the current session.
type CredentialStore interface {
	Set(ctx context.Context, user UserProfile, accessToken, refreshToken string) error
	Get(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}
