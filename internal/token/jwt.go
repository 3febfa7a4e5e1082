package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/gophdate-session/internal/model"
)

var (
	errNoExpiry     = errors.New("token has no exp claim")
	errMalformedJWT = errors.New("token is not in compact form")
)

var _ model.TokenInspector = (*Detector)(nil)

// Detector reads the expiry claim of access tokens without verifying
// their signature. The client never holds the signing key; the backend
// rejects forged tokens.
type Detector struct {
	parser  *jwt.Parser
	nowFunc func() time.Time
}

// NewDetector creates a Detector using the wall clock.
func NewDetector() *Detector {
	return NewDetectorWithClock(time.Now)
}

// NewDetectorWithClock creates a Detector reading the current time from now.
func NewDetectorWithClock(now func() time.Time) *Detector {
	return &Detector{
		parser:  jwt.NewParser(),
		nowFunc: now,
	}
}

// IsExpired reports whether the token expires before now+buffer.
// Tokens that cannot be decoded count as expired.
func (d *Detector) IsExpired(tokenString string, buffer time.Duration) bool {
	exp, err := d.ExpiresAt(tokenString)
	if err != nil {
		return true
	}
	return exp.Before(d.nowFunc().Add(buffer))
}

// ExpiresAt decodes the claims segment and returns the exp claim.
// The header is not inspected, so any signing algorithm is accepted.
func (d *Detector) ExpiresAt(tokenString string) (time.Time, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return time.Time{}, errMalformedJWT
	}

	payload, err := d.parser.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode claims segment: %w", err)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode claims: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}

	return exp.Time, nil
}
