package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

var userCols = []string{"id", "email", "username", "password_hash", "is_active", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return NewStoreWithPool(mock, ""), mock
}

func TestUsersRepo_Get(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		call      func(s *Store) (domain.User, error)
		wantID    string
		wantErr   error
		errMsg    string
	}{
		{
			name: "by username",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE username`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(userCols).
						AddRow("u1", "alice@example.com", "alice", "hash", true, now, now))
			},
			call: func(s *Store) (domain.User, error) {
				return s.Users().GetUserByUsername(context.Background(), "alice")
			},
			wantID: "u1",
		},
		{
			name: "by email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE email`).
					WithArgs("alice@example.com").
					WillReturnRows(pgxmock.NewRows(userCols).
						AddRow("u1", "alice@example.com", "alice", "hash", false, now, now))
			},
			call: func(s *Store) (domain.User, error) {
				return s.Users().GetUserByEmail(context.Background(), "alice@example.com")
			},
			wantID: "u1",
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE id`).
					WithArgs("missing").
					WillReturnRows(pgxmock.NewRows(userCols))
			},
			call: func(s *Store) (domain.User, error) {
				return s.Users().GetUserByID(context.Background(), "missing")
			},
			wantErr: store.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE id`).
					WithArgs("u1").
					WillReturnError(errors.New("connection refused"))
			},
			call: func(s *Store) (domain.User, error) {
				return s.Users().GetUserByID(context.Background(), "u1")
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			got, err := tt.call(s)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.NotErrorIs(t, err, store.ErrNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUsersRepo_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		wantColumn string
		wantDup    bool
	}{
		{name: "success"},
		{
			name:       "duplicate email",
			dbErr:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"},
			wantColumn: "email",
			wantDup:    true,
		},
		{
			name:       "duplicate username",
			dbErr:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"},
			wantColumn: "username",
			wantDup:    true,
		},
		{
			name:    "unknown unique constraint",
			dbErr:   &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_pkey"},
			wantDup: true,
		},
		{
			name:  "other failure",
			dbErr: &pgconn.PgError{Code: pgerrcode.NotNullViolation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			exp := mock.ExpectExec(`INSERT INTO users`).
				WithArgs("u1", "alice@example.com", "alice", "hash", true, pgxmock.AnyArg(), pgxmock.AnyArg())
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := s.Users().CreateUser(context.Background(), domain.User{
				ID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: "hash", IsActive: true,
			})

			switch {
			case tt.dbErr == nil:
				require.NoError(t, err)
			case tt.wantDup:
				var ce *store.ConstraintError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.wantColumn, ce.Column)
				assert.ErrorIs(t, err, store.ErrAlreadyExists)
			default:
				require.Error(t, err)
				assert.NotErrorIs(t, err, store.ErrAlreadyExists)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUsersRepo_SaveUser(t *testing.T) {
	t.Run("updates row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE users`).
			WithArgs("alice@example.com", "alice", "hash", false, pgxmock.AnyArg(), "u1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := s.Users().SaveUser(context.Background(), domain.User{
			ID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: "hash",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE users`).
			WithArgs("", "", "", false, pgxmock.AnyArg(), "ghost").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := s.Users().SaveUser(context.Background(), domain.User{ID: "ghost"})
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsersRepo_TouchUser(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		hash    string
		rows    int64
		wantErr error
	}{
		{name: "timestamp only", hash: "", rows: 1},
		{name: "with upgraded hash", hash: "$2a$12$upgraded", rows: 1},
		{name: "inactive or missing", hash: "", rows: 0, wantErr: store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(`(?s)UPDATE users.*COALESCE\(NULLIF\(\$1, ''\), password_hash\).*AND is_active = TRUE`).
				WithArgs(tt.hash, at, "u1").
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			err := s.Users().TouchUser(context.Background(), "u1", tt.hash, at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRefreshTokensRepo(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"jti", "user_id", "expires_at", "used_at", "created_at"}

	t.Run("consume", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE refresh_tokens`).
			WithArgs(now, "j1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("j1", "u1", now.Add(time.Hour), now, now.Add(-time.Hour)))

		rt, err := s.RefreshTokens().ConsumeRefreshToken(context.Background(), "j1", now)
		require.NoError(t, err)
		assert.Equal(t, "u1", rt.UserID)
		require.NotNil(t, rt.UsedAt)
		assert.True(t, rt.UsedAt.Equal(now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("consume already used", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE refresh_tokens`).
			WithArgs(now, "j1").
			WillReturnRows(pgxmock.NewRows(cols))

		_, err := s.RefreshTokens().ConsumeRefreshToken(context.Background(), "j1", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM refresh_tokens`).
			WithArgs(now).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestWithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs("j1", "u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := s.WithTx(context.Background(), func(tx store.Tx) error {
			return tx.RefreshTokens().CreateRefreshToken(context.Background(), domain.RefreshToken{
				JTI: "j1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.WithTx(context.Background(), func(tx store.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgres://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("pgx5://u:p@h/db"))
}

func TestMigrationsNeedURL(t *testing.T) {
	s, _ := newMockStore(t)
	require.Error(t, s.ApplyMigrations())
}
