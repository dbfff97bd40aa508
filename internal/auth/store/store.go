package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// ConstraintError reports which unique column rejected a write. It unwraps to
// ErrAlreadyExists so callers that do not care about the column can still
// match on the sentinel.
type ConstraintError struct {
	Column string // "email", "username" or "" when the driver cannot tell
}

func (e *ConstraintError) Error() string {
	if e.Column == "" {
		return "store: unique constraint violated"
	}
	return "store: unique constraint violated on " + e.Column
}

func (e *ConstraintError) Unwrap() error { return ErrAlreadyExists }

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are exposed as methods so a Tx-scoped
// store hands out repos bound to the same transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Migrator is implemented by drivers that can step their schema down and
// report its version. Used by the migrate command.
type Migrator interface {
	MigrateDown() error
	MigrationVersion() (version uint, dirty bool, err error)
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the first lookup tried on login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail expects an already lower-cased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Duplicate email or username yields a *ConstraintError.
	CreateUser(ctx context.Context, u domain.User) error

	// SaveUser writes every mutable column of u, keyed on u.ID.
	SaveUser(ctx context.Context, u domain.User) error

	// TouchUser stamps updated_at on an active user and, when passwordHash
	// is non-empty, replaces the stored hash. No other column is written.
	// A missing or inactive user yields ErrNotFound.
	TouchUser(ctx context.Context, id, passwordHash string, at time.Time) error
}

type RefreshTokens interface {
	// CreateRefreshToken records an issued refresh token.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// ConsumeRefreshToken marks jti as used and returns it. Unknown, used
	// or expired entries return ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, jti string, now time.Time) (domain.RefreshToken, error)

	// DeleteExpiredRefreshTokens removes entries that expired before now
	// and returns how many were removed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
