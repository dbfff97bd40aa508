package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO refresh_tokens (jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.JTI, t.UserID, t.ExpiresAt.UTC(), created.UTC())
	if err != nil {
		return oops.Code("REFRESH_TOKEN_CREATE_FAILED").With("user_id", t.UserID).Wrap(err)
	}
	return nil
}

func (r *refreshTokensRepo) ConsumeRefreshToken(
	ctx context.Context,
	jti string,
	now time.Time,
) (domain.RefreshToken, error) {
	var (
		rt     domain.RefreshToken
		usedAt time.Time
	)
	err := r.q.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET used_at = $1
		WHERE jti = $2 AND used_at IS NULL AND expires_at > $1
		RETURNING jti, user_id, expires_at, used_at, created_at
	`, now.UTC(), jti).Scan(&rt.JTI, &rt.UserID, &rt.ExpiresAt, &usedAt, &rt.CreatedAt)
	if isNoRows(err) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, oops.Code("REFRESH_TOKEN_CONSUME_FAILED").Wrap(err)
	}
	rt.UsedAt = &usedAt
	return rt, nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_CLEANUP_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
