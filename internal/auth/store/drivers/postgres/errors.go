package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

const (
	constraintUsersEmail    = "users_email_key"
	constraintUsersUsername = "users_username_key"
)

// classifyUniqueViolation maps a unique_violation to a *store.ConstraintError
// using the constraint names declared in the schema. ok is false for any
// other error.
func classifyUniqueViolation(err error) (*store.ConstraintError, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil, false
	}

	switch pgErr.ConstraintName {
	case constraintUsersEmail:
		return &store.ConstraintError{Column: "email"}, true
	case constraintUsersUsername:
		return &store.ConstraintError{Column: "username"}, true
	default:
		return &store.ConstraintError{}, true
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
