package auth

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/validation"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcryptSaltPrefixLen covers "$2a$NN$" plus the 22 character encoded salt.
const bcryptSaltPrefixLen = 29

// Hasher produces and verifies bcrypt password hashes.
// It is immutable after construction and safe for concurrent use.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher builds a Hasher at the given cost. It also prepares a throwaway
// hash at the same cost, used by CompareDummy.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d must be in [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate dummy password: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword(secret[:24], cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of password together with the salt embedded in it.
func (h *Hasher) Hash(password string) (hash, salt string, err error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", "", apperr.NewValidationError([]apperr.Violation{{
				Field:   validation.PasswordField,
				Rule:    "length",
				Message: "Password must be less than 72 bytes long",
			}})
		}
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), string(b[:bcryptSaltPrefixLen]), nil
}

// Verify reports whether password matches hash. A mismatch is (false, nil);
// an unparseable hash is reported as apperr.ErrIntegrity.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: verify password: %v", apperr.ErrIntegrity, err)
	}
}

// CompareDummy spends the same work as a real Verify against a hash nobody
// knows the password for. Login uses it when there is no stored hash to check.
func (h *Hasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
