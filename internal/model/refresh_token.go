package model

import "context"

// AuthResult is what the auth backend returns on login and refresh.
type AuthResult struct {
	User         UserProfile `json:"user" validate:"required"`
	AccessToken  string      `json:"accessToken" validate:"required"`
	RefreshToken string      `json:"refreshToken" validate:"required"`
}

// AuthBackend is the external auth endpoint.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	UpdateProfile(ctx context.Context, accessToken string, user UserProfile) (UserProfile, error)
}
