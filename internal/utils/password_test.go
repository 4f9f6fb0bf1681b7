package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	for _, plain := range []string{"secret123", "p@ss wörd", strings.Repeat("x", 64)} {
		hash, err := h.Hash(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, hash)

		ok, err := h.Compare(plain, hash)
		require.NoError(t, err)
		assert.True(t, ok, "plain %q", plain)

		ok, err = h.Compare(plain+"!", hash)
		require.NoError(t, err)
		assert.False(t, ok, "other for %q", plain)
	}
}

func TestPasswordHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	a, err := h.Hash("secret123")
	require.NoError(t, err)
	b, err := h.Hash("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_CostClamp(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(0).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).Cost())
	assert.Equal(t, 12, NewPasswordHasher(12).Cost())
}

func TestPasswordHasher_HashTooLong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrHashing)
}

func TestPasswordHasher_CompareMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	ok, err := h.Compare("secret123", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrHashing)
}
