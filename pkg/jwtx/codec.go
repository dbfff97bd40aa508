package jwtx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec issues and verifies HMAC-signed session tokens with a single shared
// secret.
type Codec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var (
	_ Signer       = (*Codec)(nil)
	_ KindVerifier = (*Codec)(nil)
)

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTTLs overrides the default access and refresh lifetimes. Non-positive
// values leave the default in place.
func WithTTLs(access, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// Issued is a freshly signed token together with the claims it carries.
type Issued struct {
	Token  string
	Claims Claims
}

// NewCodec creates a codec for one of the HS256, HS384 or HS512 algorithms.
func NewCodec(secret []byte, algorithm string, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	c := &Codec{
		secret:     append([]byte(nil), secret...),
		method:     method,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Alg names the signing algorithm, e.g. "HS256".
func (c *Codec) Alg() string { return c.method.Alg() }

// AccessTTL is the lifetime stamped on access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the lifetime stamped on refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Validate reports whether the codec is usable for signing.
func (c *Codec) Validate() error {
	if c == nil || len(c.secret) == 0 {
		return ErrMissingSecret
	}
	return nil
}

// Sign signs claims as given, without stamping any timestamps.
func (c *Codec) Sign(claims Claims) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	tok := jwt.NewWithClaims(c.method, claims)
	return tok.SignedString(c.secret)
}

// Issue stamps iat and exp on claims and signs them. Subject and kind must
// already be set; a missing jti is generated.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (Issued, error) {
	if ttl <= 0 {
		return Issued{}, ErrInvalidTTL
	}
	if claims.Subject == "" {
		return Issued{}, ErrMissingSubject
	}
	if !claims.Kind.Valid() {
		return Issued{}, fmt.Errorf("jwtx: unknown token kind %q", claims.Kind)
	}
	if claims.ID == "" {
		claims.ID = NewJTI()
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	raw, err := c.Sign(claims)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: raw, Claims: claims}, nil
}

// IssueAccess issues a short-lived access token for subject.
func (c *Codec) IssueAccess(subject string) (Issued, error) {
	return c.Issue(NewClaims(subject, KindAccess), c.accessTTL)
}

// IssueRefresh issues a long-lived refresh token for subject.
func (c *Codec) IssueRefresh(subject string) (Issued, error) {
	return c.Issue(NewClaims(subject, KindRefresh), c.refreshTTL)
}

// Verify checks signature, algorithm and expiry, and returns the claims.
// Every failure is reported as ErrInvalid.
func (c *Codec) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalid
	}

	if claims.Subject == "" || !claims.Kind.Valid() {
		return Claims{}, ErrInvalid
	}
	if claims.ValidateExpiry(c.now()) != nil {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}

// VerifyKind verifies token and additionally requires it to be of kind.
func (c *Codec) VerifyKind(token string, kind Kind) (Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Kind != kind {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
