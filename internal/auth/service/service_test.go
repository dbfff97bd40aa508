package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
	"github.com/aussiebroadwan/yieldbook/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestService(t *testing.T, singleUse bool) *SessionService {
	t.Helper()

	codec, err := jwtx.NewCodec(testSecret, "HS256")
	require.NoError(t, err)

	return &SessionService{
		Store:     newTestStore(t),
		Codec:     codec,
		Hasher:    cryptox.PasswordHasher{Cost: bcrypt.MinCost},
		Policy:    policy.New(policy.DefaultMinPasswordLength),
		SingleUse: singleUse,
	}
}

func mustRegister(t *testing.T, svc *SessionService, email, username, password string) (domain.Session, domain.User) {
	t.Helper()

	sess, user, err := svc.Register(context.Background(), email, username, password)
	require.NoError(t, err)
	return sess, user
}
