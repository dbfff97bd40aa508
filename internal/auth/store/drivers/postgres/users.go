package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

const userColumns = `id, email, username, password_hash, is_active, created_at, updated_at`

type usersRepo struct {
	q querier
}

func (r *usersRepo) getUser(ctx context.Context, code, query, arg string) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if isNoRows(err) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, oops.Code(code).With("lookup", arg).Wrap(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, "USER_GET_BY_ID_FAILED",
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getUser(ctx, "USER_GET_BY_USERNAME_FAILED",
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, "USER_GET_BY_EMAIL_FAILED",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, created.UTC(), updated.UTC())
	if err != nil {
		if ce, ok := classifyUniqueViolation(err); ok {
			return ce
		}
		return oops.Code("USER_CREATE_FAILED").With("id", u.ID).Wrap(err)
	}
	return nil
}

func (r *usersRepo) SaveUser(ctx context.Context, u domain.User) error {
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE users
		SET email = $1, username = $2, password_hash = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, u.Email, u.Username, u.PasswordHash, u.IsActive, updated.UTC(), u.ID)
	if err != nil {
		if ce, ok := classifyUniqueViolation(err); ok {
			return ce
		}
		return oops.Code("USER_SAVE_FAILED").With("id", u.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) TouchUser(ctx context.Context, id, passwordHash string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users
		SET password_hash = COALESCE(NULLIF($1, ''), password_hash), updated_at = $2
		WHERE id = $3 AND is_active = TRUE
	`, passwordHash, at.UTC(), id)
	if err != nil {
		return oops.Code("USER_TOUCH_FAILED").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
