package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Secret sizes in bytes before encoding.
const (
	// SecretSize256 matches the HS256 block of security (43 chars base64url).
	SecretSize256 = 32
	// SecretSize512 is suitable for HS384/HS512 (86 chars base64url).
	SecretSize512 = 64
)

// fingerprintPrefix is how many characters of a fingerprint are kept when
// a token is referenced in logs.
const fingerprintPrefix = 12

// GenerateToken returns size random bytes as an unpadded base64url string.
// It is used for signing secrets and any other opaque random value.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken panics if the random source fails.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(err)
	}
	return token
}

// FingerprintToken returns the base64url SHA-256 of token (43 chars). It is
// deterministic, so the same token always maps to the same fingerprint.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ShortFingerprint is a truncated FingerprintToken, enough to correlate log
// lines without the log ever holding something that can be replayed.
func ShortFingerprint(token string) string {
	if token == "" {
		return ""
	}
	return FingerprintToken(token)[:fingerprintPrefix]
}
