// Package crypto implements server-side password hashing and wallet signature checks.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for account passwords.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltLen is the size of the per-account salt.
	SaltLen = 16
)

// ErrEmptyPassword is returned by NewPasswordHash for an empty password.
var ErrEmptyPassword = errors.New("empty password")

// PasswordHash is the stored verifier of an account password.
type PasswordHash struct {
	Hash []byte
	Salt []byte
}

// NewPasswordHash salts password with fresh random bytes and hashes it.
func NewPasswordHash(password string) (PasswordHash, error) {
	if password == "" {
		return PasswordHash{}, ErrEmptyPassword
	}
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{Hash: argon2id(password, salt), Salt: salt}, nil
}

// Matches reports in constant time whether password produces h.
// A zero PasswordHash never matches.
func (h PasswordHash) Matches(password string) bool {
	if len(h.Hash) == 0 || len(h.Salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(argon2id(password, h.Salt), h.Hash) == 1
}

func argon2id(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
