package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, "pepper")

	hash, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "123456"))
	assert.Error(t, h.Compare(hash, "654321"))

	// A different pepper must not verify.
	assert.Error(t, NewBcryptHasher(bcrypt.MinCost, "other").Compare(hash, "123456"))

	_, err = h.Hash("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestValidPIN(t *testing.T) {
	assert.True(t, ValidPIN("012345"))
	assert.False(t, ValidPIN("12345"))
	assert.False(t, ValidPIN("1234567"))
	assert.False(t, ValidPIN("12a456"))
}

func TestEqualConstantTime(t *testing.T) {
	assert.True(t, EqualConstantTime("admin", "admin"))
	assert.False(t, EqualConstantTime("admin", "admin2"))
}
