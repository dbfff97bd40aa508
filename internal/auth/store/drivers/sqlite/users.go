package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/sqlite/gen"
)

type usersRepo struct {
	q *gen.Queries
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row, err := r.q.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := r.q.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	created := utc(u.CreatedAt)
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	err := r.q.CreateUser(ctx, gen.CreateUserParams{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    created,
		UpdatedAt:    updated.UTC(),
	})
	return mapWriteError(err)
}

func (r *usersRepo) SaveUser(ctx context.Context, u domain.User) error {
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	n, err := r.q.SaveUser(ctx, gen.SaveUserParams{
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		UpdatedAt:    updated.UTC(),
		ID:           u.ID,
	})
	if err != nil {
		return mapWriteError(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) TouchUser(ctx context.Context, id, passwordHash string, at time.Time) error {
	n, err := r.q.TouchUser(ctx, gen.TouchUserParams{
		PasswordHash: passwordHash,
		UpdatedAt:    at.UTC(),
		ID:           id,
	})
	if err != nil {
		return mapWriteError(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
