package model

import "errors"

var (
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrNoSession       = errors.New("no session")
	ErrBackendRejected = errors.New("auth backend rejected request")
	ErrInvalidResponse = errors.New("invalid auth backend response")
	ErrNotFound        = errors.New("not found")
)
