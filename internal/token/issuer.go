package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the claims minted by Issuer.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Issuer mints HS256 token pairs. It backs the in-process auth backend
// used by tests and local development.
type Issuer struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

// NewIssuer creates an Issuer with the given secret and lifetimes.
func NewIssuer(secretKey string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowFunc:    time.Now,
	}
}

// AccessToken mints an access token for the user.
func (i *Issuer) AccessToken(userID string) (string, error) {
	return i.AccessTokenExpiringAt(userID, i.nowFunc().Add(i.accessTTL))
}

// AccessTokenExpiringAt mints an access token with an explicit exp claim.
func (i *Issuer) AccessTokenExpiringAt(userID string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(i.nowFunc()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// RefreshToken mints a refresh token with a unique JTI.
func (i *Issuer) RefreshToken(userID string) (string, error) {
	now := i.nowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		TokenType: typeRefresh,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// ParseRefreshToken validates a refresh token and returns its subject and JTI.
func (i *Issuer) ParseRefreshToken(tokenString string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return i.secretKey, nil
	}, jwt.WithTimeFunc(i.nowFunc))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse refresh token: %w", err)
	}
	if !token.Valid {
		return "", "", fmt.Errorf("refresh token is invalid")
	}
	if claims.TokenType != typeRefresh {
		return "", "", fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	return claims.Subject, claims.ID, nil
}
