package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest plaintext bcrypt will hash without truncating.
const MaxLength = 72

// ErrPasswordTooLong is returned by Hash for plaintexts bcrypt would silently truncate.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// Codec hashes and verifies admin passwords with bcrypt. Every hash embeds
// its own random salt, so hashing the same plaintext twice yields different
// results.
type Codec struct {
	cost int
}

// NewCodec creates a codec with the given bcrypt cost. Zero selects bcrypt.DefaultCost.
func NewCodec(cost int) (*Codec, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &Codec{cost: cost}, nil
}

// Hash returns the encoded bcrypt hash of plaintext.
func (c *Codec) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
func (c *Codec) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
