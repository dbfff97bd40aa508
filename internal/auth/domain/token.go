package domain

import "time"

// TokenTypeBearer is the token_type returned alongside every access token.
const TokenTypeBearer = "bearer"

// Session is the outcome of a successful register, login or refresh. The
// access token goes back in the response body and the refresh token only
// ever travels in the refresh cookie.
type Session struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshToken is a ledger entry for an issued refresh token, used when
// refresh tokens are single-use.
type RefreshToken struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
