package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrMissingBearer is passed to the error writer when a request carries no
// usable bearer token.
var ErrMissingBearer = errors.New("httpx: missing bearer token")

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthnFunc resolves a bearer token into a principal and its subject id.
type AuthnFunc[T any] func(ctx context.Context, token string) (principal T, subject string, err error)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware requires a bearer token accepted by authn and stores the
// resulting principal in the request context.
func AuthnMiddleware[T any](authn AuthnFunc[T], onError ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				onError(w, r, ErrMissingBearer)
				return
			}

			principal, subject, err := authn(r.Context(), raw)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := WithPrincipal(r.Context(), subject, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetBearerChallenge sets an RFC 6750 WWW-Authenticate header. An empty
// errCode produces the bare "Bearer" challenge.
func SetBearerChallenge(w http.ResponseWriter, errCode, desc string) {
	if errCode == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		return
	}
	v := `Bearer error="` + errCode + `"`
	if desc != "" {
		v += `, error_description="` + desc + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
}
