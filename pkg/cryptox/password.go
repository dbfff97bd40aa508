package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new hashes when a hasher has
// no explicit cost.
const DefaultBcryptCost = 12

// ErrInvalidCost is returned when a hasher is configured outside bcrypt's
// accepted cost range.
var ErrInvalidCost = errors.New("cryptox: bcrypt cost out of range")

// PasswordHasher hashes secrets with bcrypt after compressing them to a
// fixed-size SHA-256 digest, so secrets longer than bcrypt's 72 byte input
// limit are never silently truncated.
//
// Cost only applies to Hash. Verify always takes the cost embedded in the
// stored hash.
type PasswordHasher struct {
	Cost int
}

// DefaultHasher is used by HashPassword and VerifyPassword.
var DefaultHasher = PasswordHasher{Cost: DefaultBcryptCost}

func (h PasswordHasher) cost() int {
	if h.Cost == 0 {
		return DefaultBcryptCost
	}
	return h.Cost
}

// Hash returns a self-describing bcrypt hash ($2a$<cost>$<salt+digest>).
func (h PasswordHasher) Hash(secret string) (string, error) {
	cost := h.cost()
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", ErrInvalidCost
	}

	out, err := bcrypt.GenerateFromPassword(prehash(secret), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether secret matches the stored hash. Malformed or empty
// hashes simply do not verify.
func (h PasswordHasher) Verify(secret, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(secret)) == nil
}

// NeedsRehash reports whether hash was produced with a cost other than the
// hasher's current one. Unparseable hashes always need a rehash.
func (h PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost()
}

// HashPassword hashes secret with DefaultHasher.
func HashPassword(secret string) (string, error) {
	return DefaultHasher.Hash(secret)
}

// VerifyPassword checks secret against hash with DefaultHasher.
func VerifyPassword(secret, hash string) bool {
	return DefaultHasher.Verify(secret, hash)
}

// prehash yields the 64 byte hex SHA-256 digest of secret.
func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}
