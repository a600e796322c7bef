// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultArgon2 is tuned for server-side hashing.
var DefaultArgon2 = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// Hasher derives and checks password hashes with fixed parameters.
type Hasher struct{ p Argon2Params }

// NewHasher returns a hasher; zero fields fall back to DefaultArgon2.
func NewHasher(p Argon2Params) *Hasher {
	if p.Time == 0 {
		p.Time = DefaultArgon2.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultArgon2.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultArgon2.SaltLen
	}
	return &Hasher{p: p}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// New hashes password under a fresh salt.
func (h *Hasher) New(password []byte) (hash, salt []byte, err error) {
	if salt, err = RandBytes(h.p.SaltLen); err != nil {
		return nil, nil, err
	}
	return h.Hash(password, salt), salt, nil
}

// Hash returns the Argon2id hash of password using the provided salt.
func (h *Hasher) Hash(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}

// Verify checks password against expected hash and salt in constant time.
func (h *Hasher) Verify(password, salt, expected []byte) bool {
	got := h.Hash(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
