// Package hasher hashes and verifies secrets with bcrypt. It is used for
// account passwords and for the at-rest copy of refresh and reset tokens.
package hasher

import (
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// MaxInputBytes is the bcrypt input limit. Longer inputs are truncated, so two
// passwords sharing their first 72 bytes verify against each other's digest.
const MaxInputBytes = 72

// PasswordHasher defines the interface for password hashing implementations
type PasswordHasher interface {
	// Hash hashes a password
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. A malformed digest is
	// reported as a mismatch.
	Verify(password, digest string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using bcrypt.DefaultCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash implements PasswordHasher.Hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	hashedBytes, err := bcrypt.GenerateFromPassword(truncate(password), h.cost())
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// Verify implements PasswordHasher.Verify
func (h *BcryptHasher) Verify(password, digest string) bool {
	if password == "" || digest == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), truncate(password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("Stored digest could not be compared", "err", err)
		}
		return false
	}
	return true
}

func (h *BcryptHasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

// truncate keeps raw bytes so a cut inside a multi-byte rune is hashed and
// verified identically.
func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxInputBytes {
		b = b[:MaxInputBytes]
	}
	return b
}
