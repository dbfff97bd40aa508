package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
	"github.com/aussiebroadwan/yieldbook/pkg/idx"
	"github.com/aussiebroadwan/yieldbook/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active user and opens a session", func(t *testing.T) {
		svc := newTestService(t, false)

		sess, user, err := svc.Register(ctx, "  Alice@Example.COM ", "alice", "correct horse")
		require.NoError(t, err)

		assert.True(t, idx.Valid(user.ID))
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "correct horse", user.PasswordHash)
		assert.True(t, svc.Hasher.Verify("correct horse", user.PasswordHash))

		access, err := svc.Codec.VerifyKind(sess.AccessToken, jwtx.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, user.ID, access.Subject)

		refresh, err := svc.Codec.VerifyKind(sess.RefreshToken, jwtx.KindRefresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID, refresh.Subject)
		assert.True(t, sess.RefreshExpiresAt.After(sess.AccessExpiresAt))

		stored, err := svc.Store.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, stored.Email)
	})

	t.Run("policy violations are returned untouched", func(t *testing.T) {
		svc := newTestService(t, false)

		tests := []struct {
			name                      string
			email, username, password string
			field                     string
			rule                      policy.Rule
		}{
			{"short password", "a@example.com", "alice", "short", "password", policy.RulePasswordTooShort},
			{"short username", "a@example.com", "al", "long enough", "username", policy.RuleUsernameLength},
			{"bad charset", "a@example.com", "al ice", "long enough", "username", policy.RuleUsernameCharset},
			{"padded username", "a@example.com", " alice", "long enough", "username", policy.RuleUsernameCharset},
			{"bad email", "not-an-email", "alice", "long enough", "email", policy.RuleEmailFormat},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := svc.Register(ctx, tt.email, tt.username, tt.password)

				var v *policy.Violation
				require.True(t, errors.As(err, &v))
				assert.Equal(t, tt.field, v.Field)
				assert.Equal(t, tt.rule, v.Rule)
				assert.Equal(t, "policy_violation", Kind(err))
			})
		}

		_, err := svc.Store.Users().GetUserByUsername(ctx, "alice")
		require.Error(t, err, "rejected registrations must not persist anything")
	})

	t.Run("unicode usernames are stored as given", func(t *testing.T) {
		svc := newTestService(t, false)
		_, user := mustRegister(t, svc, "zoe@example.com", "Zoë_1", "correct horse")
		assert.Equal(t, "Zoë_1", user.Username)

		_, got, err := svc.Login(ctx, "Zoë_1", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("duplicates name the collided field", func(t *testing.T) {
		svc := newTestService(t, false)
		mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		_, _, err := svc.Register(ctx, "ALICE@example.com", "alice2", "correct horse")
		require.ErrorIs(t, err, ErrEmailTaken)

		_, _, err = svc.Register(ctx, "other@example.com", "alice", "correct horse")
		require.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("single-use mode records the refresh jti", func(t *testing.T) {
		svc := newTestService(t, true)
		sess, user := mustRegister(t, svc, "bob@example.com", "bob", "correct horse")

		claims, err := svc.Codec.Verify(sess.RefreshToken)
		require.NoError(t, err)

		rt, err := svc.Store.RefreshTokens().ConsumeRefreshToken(ctx, claims.ID, svc.now())
		require.NoError(t, err)
		assert.Equal(t, user.ID, rt.UserID)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, false)
	_, alice := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

	t.Run("by username", func(t *testing.T) {
		sess, user, err := svc.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)

		claims, err := svc.Codec.VerifyKind(sess.AccessToken, jwtx.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, claims.Subject)
	})

	t.Run("by email in any case", func(t *testing.T) {
		_, user, err := svc.Login(ctx, "ALICE@Example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		tests := []struct {
			name, identifier, password string
		}{
			{"wrong password", "alice", "wrong horse"},
			{"unknown user", "mallory", "correct horse"},
			{"unknown email", "mallory@example.com", "correct horse"},
			{"empty identifier", "", "correct horse"},
			{"empty password", "alice", ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := svc.Login(ctx, tt.identifier, tt.password)
				require.ErrorIs(t, err, ErrInvalidCredentials)
			})
		}
	})

	t.Run("inactive account", func(t *testing.T) {
		svc := newTestService(t, false)
		_, u := mustRegister(t, svc, "carol@example.com", "carol", "correct horse")
		u.IsActive = false
		require.NoError(t, svc.Store.Users().SaveUser(ctx, u))

		_, _, err := svc.Login(ctx, "carol", "correct horse")
		require.ErrorIs(t, err, ErrAccountInactive)

		// A wrong password still reads as bad credentials.
		_, _, err = svc.Login(ctx, "carol", "wrong horse")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("deactivation racing the login wins", func(t *testing.T) {
		svc := newTestService(t, false)
		_, u := mustRegister(t, svc, "erin@example.com", "erin", "correct horse")
		svc.Store = deactivatingStore{Store: svc.Store}

		_, _, err := svc.Login(ctx, "erin", "correct horse")
		require.ErrorIs(t, err, ErrAccountInactive)

		stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("upgrades hashes below the configured cost", func(t *testing.T) {
		svc := newTestService(t, false)
		_, u := mustRegister(t, svc, "dave@example.com", "dave", "correct horse")

		svc.Hasher = cryptox.PasswordHasher{Cost: bcrypt.MinCost + 1}
		_, _, err := svc.Login(ctx, "dave", "correct horse")
		require.NoError(t, err)

		stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost+1, cost)
		assert.True(t, svc.Hasher.Verify("correct horse", stored.PasswordHash))
	})

	t.Run("counts failed logins", func(t *testing.T) {
		counter := SessionTransitions.WithLabelValues(ActionLogin, ErrInvalidCredentials.Error())
		before := testutil.ToFloat64(counter)

		_, _, err := svc.Login(ctx, "alice", "nope")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, before+1, testutil.ToFloat64(counter))
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a new pair", func(t *testing.T) {
		svc := newTestService(t, false)
		sess, user := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		next, got, err := svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

		_, err = svc.Codec.VerifyKind(next.AccessToken, jwtx.KindAccess)
		require.NoError(t, err)
	})

	t.Run("rejects anything but a live refresh token", func(t *testing.T) {
		svc := newTestService(t, false)
		sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		orphan, err := svc.Codec.IssueRefresh(idx.New().String())
		require.NoError(t, err)
		notULID, err := svc.Codec.IssueRefresh("alice")
		require.NoError(t, err)

		tests := []struct {
			name, token string
		}{
			{"empty", ""},
			{"garbage", "not.a.jwt"},
			{"access token", sess.AccessToken},
			{"unknown subject", orphan.Token},
			{"subject is not an id", notULID.Token},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := svc.Refresh(ctx, tt.token)
				require.ErrorIs(t, err, ErrTokenInvalid)
			})
		}
	})

	t.Run("expired refresh token", func(t *testing.T) {
		for _, singleUse := range []bool{false, true} {
			svc := newTestService(t, singleUse)
			sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

			later, err := jwtx.NewCodec(testSecret, "HS256",
				jwtx.WithClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }),
			)
			require.NoError(t, err)
			svc.Codec = later

			_, _, err = svc.Refresh(ctx, sess.RefreshToken)
			require.ErrorIs(t, err, ErrTokenInvalid, "single use: %v", singleUse)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		svc := newTestService(t, false)
		sess, u := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")
		u.IsActive = false
		require.NoError(t, svc.Store.Users().SaveUser(ctx, u))

		_, _, err := svc.Refresh(ctx, sess.RefreshToken)
		require.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("reusable by default", func(t *testing.T) {
		svc := newTestService(t, false)
		sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		for range 3 {
			_, _, err := svc.Refresh(ctx, sess.RefreshToken)
			require.NoError(t, err)
		}
	})

	t.Run("single use when enabled", func(t *testing.T) {
		svc := newTestService(t, true)
		sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		next, _, err := svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)

		_, _, err = svc.Refresh(ctx, sess.RefreshToken)
		require.ErrorIs(t, err, ErrTokenInvalid)

		_, _, err = svc.Refresh(ctx, next.RefreshToken)
		require.NoError(t, err)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("never fails on bad input", func(t *testing.T) {
		svc := newTestService(t, true)
		svc.Logout(ctx, "")
		svc.Logout(ctx, "garbage")
	})

	t.Run("burns single-use refresh tokens", func(t *testing.T) {
		svc := newTestService(t, true)
		sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		svc.Logout(ctx, sess.RefreshToken)

		_, _, err := svc.Refresh(ctx, sess.RefreshToken)
		require.ErrorIs(t, err, ErrTokenInvalid)

		// Burning twice is harmless.
		svc.Logout(ctx, sess.RefreshToken)
	})

	t.Run("stateless mode leaves tokens valid", func(t *testing.T) {
		svc := newTestService(t, false)
		sess, _ := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

		svc.Logout(ctx, sess.RefreshToken)

		_, _, err := svc.Refresh(ctx, sess.RefreshToken)
		require.NoError(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, false)
	sess, alice := mustRegister(t, svc, "alice@example.com", "alice", "correct horse")

	user, err := svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = svc.Authenticate(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrTokenInvalid)

	alice.IsActive = false
	require.NoError(t, svc.Store.Users().SaveUser(ctx, alice))
	_, err = svc.Authenticate(ctx, sess.AccessToken)
	require.ErrorIs(t, err, ErrAccountInactive)
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&policy.Violation{Field: "email", Rule: policy.RuleEmailFormat}, "policy_violation"},
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrTokenInvalid, "invalid_token"},
		{ErrAccountInactive, "account_inactive"},
		{ErrEmailTaken, "email_taken"},
		{ErrUsernameTaken, "username_taken"},
		{ErrRegistrationFailed, "registration_failed"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestMapCreateError(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, mapCreateError(&store.ConstraintError{Column: "email"}), ErrEmailTaken)
	assert.ErrorIs(t, mapCreateError(&store.ConstraintError{Column: "username"}), ErrUsernameTaken)
	assert.ErrorIs(t, mapCreateError(&store.ConstraintError{Column: "id"}), ErrRegistrationFailed)
}

// deactivatingStore flips a user inactive immediately after it has been
// looked up by username, standing in for an admin acting mid-login.
type deactivatingStore struct {
	store.Store
}

func (s deactivatingStore) Users() store.Users {
	return deactivatingUsers{Users: s.Store.Users()}
}

type deactivatingUsers struct {
	store.Users
}

func (u deactivatingUsers) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	user, err := u.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return user, err
	}

	off := user
	off.IsActive = false
	if err := u.Users.SaveUser(ctx, off); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
