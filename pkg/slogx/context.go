package slogx

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// With returns ctx carrying the contextual logger extended with args.
func With(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}

// Fingerprint logs a token by a short one-way fingerprint so log lines can
// be correlated without ever holding a usable credential.
func Fingerprint(key, token string) slog.Attr {
	return slog.String(key, cryptox.ShortFingerprint(token))
}
