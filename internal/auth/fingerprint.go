package auth

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Fingerprint returns the base58-encoded SHA-256 digest of a refresh token.
// Only the fingerprint is persisted, so session rows cannot be replayed as
// credentials if the store leaks.
func Fingerprint(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return base58.Encode(sum[:])
}
