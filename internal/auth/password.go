package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("operator password must be at least 12 characters")
	ErrInvalidCost      = fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	ErrMalformedHash    = errors.New("OPERATOR_PASSWORD_HASH is not a bcrypt hash")
)

const (
	DefaultBcryptCost = 12
	// MinOperatorCost is the weakest cost accepted from configuration.
	MinOperatorCost   = 10
	minPasswordLength = 12
)

// HashPassword hashes an operator password for OPERATOR_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", ErrInvalidCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash operator password: %w", err)
	}
	return string(hash), nil
}

// ValidateOperatorHash rejects a configured hash that bcrypt cannot read or
// that was generated below MinOperatorCost.
func ValidateOperatorHash(hash string) error {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if cost < MinOperatorCost {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH cost %d is below %d", cost, MinOperatorCost)
	}
	return nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
