package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/sqlite/gen"
)

type refreshTokensRepo struct {
	q *gen.Queries
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	err := r.q.CreateRefreshToken(ctx, gen.CreateRefreshTokenParams{
		Jti:       t.JTI,
		UserID:    t.UserID,
		ExpiresAt: t.ExpiresAt.UTC(),
		CreatedAt: utc(t.CreatedAt),
	})
	return mapWriteError(err)
}

func (r *refreshTokensRepo) ConsumeRefreshToken(
	ctx context.Context,
	jti string,
	now time.Time,
) (domain.RefreshToken, error) {
	now = now.UTC()
	row, err := r.q.ConsumeRefreshToken(ctx, gen.ConsumeRefreshTokenParams{
		UsedAt:    sql.NullTime{Time: now, Valid: true},
		Jti:       jti,
		ExpiresAt: now,
	})
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredRefreshTokens(ctx, now.UTC())
}
