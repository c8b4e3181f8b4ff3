package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================
// HashPassword
// ============================================

func TestHashPassword_UsesRequestedCost(t *testing.T) {
	hash, err := HashPassword("ledger-operator-1", bcrypt.MinCost)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.True(t, CheckPassword("ledger-operator-1", hash))
}

func TestHashPassword_ShortPassword(t *testing.T) {
	for _, pw := range []string{"", "password", "11-chars-xx"} {
		hash, err := HashPassword(pw, bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrPasswordTooShort, pw)
		assert.Empty(t, hash)
	}
}

func TestHashPassword_CostOutOfRange(t *testing.T) {
	_, err := HashPassword("ledger-operator-1", bcrypt.MinCost-1)
	assert.ErrorIs(t, err, ErrInvalidCost)

	_, err = HashPassword("ledger-operator-1", bcrypt.MaxCost+1)
	assert.ErrorIs(t, err, ErrInvalidCost)
}

// ============================================
// ValidateOperatorHash
// ============================================

func TestValidateOperatorHash(t *testing.T) {
	strong, err := HashPassword("ledger-operator-1", MinOperatorCost)
	require.NoError(t, err)
	assert.NoError(t, ValidateOperatorHash(strong))

	weak, err := HashPassword("ledger-operator-1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Error(t, ValidateOperatorHash(weak))

	assert.ErrorIs(t, ValidateOperatorHash("plain-text-password"), ErrMalformedHash)
	assert.ErrorIs(t, ValidateOperatorHash(""), ErrMalformedHash)
}

// ============================================
// CheckPassword
// ============================================

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("Ledger-Operator-1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPassword("Ledger-Operator-1", hash))
	assert.False(t, CheckPassword("ledger-operator-1", hash))
	assert.False(t, CheckPassword("", hash))
	assert.False(t, CheckPassword("Ledger-Operator-1", "invalid-hash"))
	assert.False(t, CheckPassword("Ledger-Operator-1", ""))
}
