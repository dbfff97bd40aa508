package httpx

import "context"

type ctxKey string

const (
	ctxKeyPrincipal ctxKey = "principal"
	ctxKeySubject   ctxKey = "subject"
)

// WithPrincipal stores the authenticated principal and its subject id.
func WithPrincipal(ctx context.Context, subject string, principal any) context.Context {
	ctx = context.WithValue(ctx, ctxKeySubject, subject)
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// Principal returns the principal stored by AuthnMiddleware.
func Principal[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(ctxKeyPrincipal).(T)
	return v, ok
}

// SubjectFromContext returns the authenticated subject id, or "".
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySubject).(string)
	return s
}
