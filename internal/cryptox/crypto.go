// Package cryptox derives and checks password verifiers for the database
// credential backends.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of a per-user salt.
const SaltSize = 16

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches password with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	x := argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
	return x
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HashPassword returns the verifier stored for password under salt.
func HashPassword(password string, salt []byte) []byte {
	pw := []byte(password)
	defer Wipe(pw)

	key := DeriveMasterKey(pw, salt)
	defer Wipe(key)

	return MakeVerifier(key)
}

// CheckPassword compares password against a stored verifier in constant time.
func CheckPassword(password string, salt, verifier []byte) bool {
	return subtle.ConstantTimeCompare(HashPassword(password, salt), verifier) == 1
}

// Wipe zeroes b. It is a no-op for nil.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
