// Package hsm keeps customer secrets: PIN hashing, PIN verification with a
// failure lockout, and hashing of one-time step-up codes.
package hsm

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const saltLength = 16

var ErrMalformedHash = errors.New("malformed secret hash")

// Params are the Argon2id cost settings.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// PINVault hashes short secrets as base64(salt || argon2id key).
type PINVault struct {
	params Params
}

func NewPINVault(params Params) *PINVault {
	return &PINVault{params: params}
}

func (v *PINVault) derive(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, v.params.Time, v.params.Memory, v.params.Threads, v.params.KeyLen)
}

func (v *PINVault) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := v.derive(secret, salt)

	// Combine salt + hash
	result := make([]byte, len(salt)+len(hash))
	copy(result, salt)
	copy(result[len(salt):], hash)

	return base64.StdEncoding.EncodeToString(result), nil
}

// Compare reports whether secret matches encoded. Only a malformed hash is an
// error.
func (v *PINVault) Compare(secret, encoded string) (bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	if len(decoded) <= saltLength {
		return false, ErrMalformedHash
	}

	salt := decoded[:saltLength]
	storedHash := decoded[saltLength:]

	inputHash := v.derive(secret, salt)
	return subtle.ConstantTimeCompare(inputHash, storedHash) == 1, nil
}

func (v *PINVault) Verify(secret, encoded string) bool {
	ok, err := v.Compare(secret, encoded)
	return err == nil && ok
}
