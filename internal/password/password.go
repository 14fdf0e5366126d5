// Package password provides one-way hashing and verification of login
// credentials using bcrypt.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit. Longer passwords are
// deterministically truncated on both the hash and verify paths so a long
// password never silently fails verification.
const maxPasswordBytes = 72

const (
	// MinCost is the lowest cost factor accepted when constructing a Hasher.
	MinCost = 10
	// DefaultCost is used when no cost is configured.
	DefaultCost = 12
)

// Hasher hashes and verifies passwords. The cost factor only affects newly
// created digests; bcrypt digests self-describe their cost, so raising the
// configured cost never breaks verification of previously stored hashes.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given cost factor. A zero cost selects
// DefaultCost; anything below MinCost is raised to MinCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < MinCost:
		cost = MinCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt digest of the password.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(truncate(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether the password matches the stored digest.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), truncate(password)) == nil
}

// truncate bounds the password to the bcrypt byte limit.
func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
