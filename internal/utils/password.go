package utils // utils hashes and verifies passwords

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/authcore/internal/apperr"
)

// bcryptMaxInput is the longest password bcrypt accepts, in bytes.
const bcryptMaxInput = 72

// Hasher hashes and verifies passwords with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt digest of plain. It fails only when bcrypt itself
// does; passwords of any length are accepted.
func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plain), h.cost)
	if err != nil {
		return "", apperr.Hashing(err)
	}
	return string(b), nil
}

// Verify safely compares a bcrypt digest and a plain password. A malformed
// digest is treated as a mismatch.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plain)) == nil
}

// bcryptInput folds passwords longer than bcrypt's limit into the base64 of
// their SHA-256 digest. Shorter ones pass through unchanged so plain bcrypt
// digests keep verifying.
func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
