package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fast keeps the suite quick; the cost is read back from each hash anyway.
var fast = PasswordHasher{Cost: bcrypt.MinCost}

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := fast.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$2a$04$"), "hash should embed algorithm and cost: %s", hash)
			require.True(t, fast.Verify(tt.password, hash))
		})
	}
}

func TestHash_Salted(t *testing.T) {
	h1, err := fast.Hash("samepassword")
	require.NoError(t, err)
	h2, err := fast.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2, "hashes should differ due to unique salts")
	require.True(t, fast.Verify("samepassword", h1))
	require.True(t, fast.Verify("samepassword", h2))
}

func TestVerify_WrongPassword(t *testing.T) {
	hash, err := fast.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{
		"wrong-password",
		"Correct-Password",
		"correct-password ",
		"",
		"correct-passwor",
	} {
		t.Run(wrong, func(t *testing.T) {
			require.False(t, fast.Verify(wrong, hash))
		})
	}
}

func TestVerify_BeyondBcryptInputLimit(t *testing.T) {
	// Raw bcrypt only sees the first 72 bytes; these differ after that.
	base := strings.Repeat("x", 80)
	a := base + "-tail-a"
	b := base + "-tail-b"

	hash, err := fast.Hash(a)
	require.NoError(t, err)

	require.True(t, fast.Verify(a, hash))
	require.False(t, fast.Verify(b, hash))
}

func TestVerify_MalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"garbage", "not-a-hash"},
		{"argon2 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"truncated bcrypt", "$2a$12$abc"},
		{"bad cost", "$2a$99$aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, fast.Verify("password", tt.hash))
			})
		})
	}
}

func TestVerify_UsesStoredCost(t *testing.T) {
	old := PasswordHasher{Cost: bcrypt.MinCost + 1}
	hash, err := old.Hash("migrate-me")
	require.NoError(t, err)

	// A hasher configured with a different cost still verifies old hashes.
	require.True(t, fast.Verify("migrate-me", hash))
	require.True(t, fast.NeedsRehash(hash))
	require.False(t, old.NeedsRehash(hash))
	require.True(t, fast.NeedsRehash("garbage"))
}

func TestHash_InvalidCost(t *testing.T) {
	_, err := PasswordHasher{Cost: 1}.Hash("password")
	require.ErrorIs(t, err, ErrInvalidCost)

	_, err = PasswordHasher{Cost: bcrypt.MaxCost + 1}.Hash("password")
	require.ErrorIs(t, err, ErrInvalidCost)
}

func TestDefaultHasher(t *testing.T) {
	require.Equal(t, DefaultBcryptCost, PasswordHasher{}.cost())

	hash, err := HashPassword("default-cost")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, DefaultBcryptCost, cost)
	require.True(t, VerifyPassword("default-cost", hash))
	require.False(t, VerifyPassword("other", hash))
}
