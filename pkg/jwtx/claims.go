package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the session flows.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Kind discriminates access tokens from refresh tokens so one can never be
// presented where the other is expected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is one of the known token kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims are the claims carried by every session token.
type Claims struct {
	jwt.RegisteredClaims

	// Kind is serialised as "typ" and is always present on tokens issued
	// by a Codec.
	Kind Kind `json:"typ"`
}

// NewClaims builds claims for subject. Timestamps are filled in by the
// Codec at issue time.
func NewClaims(subject string, kind Kind) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
			ID:      NewJTI(),
		},
		Kind: kind,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ExpiresAtTime returns the expiry as a time.Time, or the zero time when
// the claim is absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateExpiry reports ErrExpired when the token is no longer valid at
// now. A token whose expiry equals now is already expired.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
