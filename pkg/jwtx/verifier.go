package jwtx

import "errors"

// Verifier validates a token and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// KindVerifier additionally pins the expected token kind.
type KindVerifier interface {
	Verifier
	VerifyKind(token string, kind Kind) (Claims, error)
}

var (
	// ErrInvalid is the single outcome for every token that fails
	// verification: bad signature, wrong algorithm, expired, malformed or
	// wrong kind. Callers must not be able to tell these apart.
	ErrInvalid = errors.New("jwtx: invalid token")

	ErrExpired              = errors.New("jwtx: token expired")
	ErrMissingSecret        = errors.New("jwtx: signing secret is required")
	ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported signing algorithm")
	ErrInvalidTTL           = errors.New("jwtx: ttl must be positive")
	ErrMissingSubject       = errors.New("jwtx: subject is required")
)
