package model

import "time"

// TokenInspector reads claims embedded in access tokens.
type TokenInspector interface {
	IsExpired(token string, buffer time.Duration) bool
	ExpiresAt(token string) (time.Time, error)
}
