package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// ErrUserNotFound is returned by administrative lookups.
var ErrUserNotFound = errors.New("user_not_found")

// UserService holds account administration outside the session flow.
type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// SetActive flips the active flag of the account named by identifier
// (username or email). Inactive accounts can no longer log in, refresh or
// authenticate.
func (s *UserService) SetActive(ctx context.Context, identifier string, active bool) (domain.User, error) {
	var user domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = lookupUser(ctx, tx.Users(), identifier)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if user.IsActive == active {
			return nil
		}
		user.IsActive = active
		user.UpdatedAt = time.Now().UTC()
		return tx.Users().SaveUser(ctx, user)
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user active flag set", "sub", user.ID, "active", active)
	return user, nil
}
