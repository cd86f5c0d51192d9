package utils // utils generates reset tokens and random secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResetToken is a freshly generated password-reset token. Plain goes to the
// user out-of-band; only Hash is ever stored.
type ResetToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// NewResetToken returns a random 32-byte token (64 hex chars) that expires ttl
// after now.
func NewResetToken(now time.Time, ttl time.Duration) (ResetToken, error) {
	raw, err := randomHex(32)
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Plain:     raw,
		Hash:      HashResetToken(raw),
		ExpiresAt: now.UTC().Add(ttl),
	}, nil
}

// HashResetToken returns the SHA-256 hex digest of a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// RandomSecret returns n bytes of secure random data, hex encoded. It backs the
// placeholder password of federated accounts and the OAuth state value.
func RandomSecret(n int) (string, error) {
	return randomHex(n)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
