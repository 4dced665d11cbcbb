// Package cryptox implements password hashing for account credentials.
//
// Digests are self-describing (bcrypt "$2a$..." or PHC "$argon2id$..."), so
// verification needs nothing but the stored string.
package cryptox

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPasswordTooLong is returned when bcrypt cannot represent the input.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// Algorithm names accepted in configuration.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Hasher turns a plaintext password into a digest and checks candidates
// against it. Verify never says why a candidate was rejected.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// MultiHasher hashes with one algorithm and verifies digests of every
// supported algorithm, picked by digest prefix.
type MultiHasher struct {
	primary Hasher
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewHasher builds a MultiHasher whose new digests use algorithm.
func NewHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(DefaultArgon2Params),
	}

	switch algorithm {
	case AlgorithmBcrypt, "":
		m.primary = m.bcrypt
	case AlgorithmArgon2id:
		m.primary = m.argon2
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	return m, nil
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *MultiHasher) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return m.argon2.Verify(password, digest)
	case strings.HasPrefix(digest, "$2"):
		return m.bcrypt.Verify(password, digest)
	default:
		return false
	}
}
