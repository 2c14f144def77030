package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/authgate/internal/apperr"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestNewHasher_RejectsCostOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := NewHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)
	_, err = NewHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}

func TestHasher_RoundTrip(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	for _, pw := range []string{"Passw0rd!", "Flarbene123!", "Ünïcødé-Pa55!"} {
		hash, salt, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, salt), "salt must be the hash prefix")
		assert.Len(t, salt, bcryptSaltPrefixLen)

		ok, err := h.Verify(pw, hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify(pw+"x", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestHasher_SaltsDiffer(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	a, saltA, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	b, saltB, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, saltA, saltB)
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	hash, _, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, h.Cost(), cost)
}

func TestHasher_MalformedHashIsIntegrityError(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	ok, err := h.Verify("Passw0rd!", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestHasher_PasswordTooLongIsValidationError(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	_, _, err := h.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHasher_CompareDummyDoesNotPanic(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	assert.NotPanics(t, func() { h.CompareDummy("anything") })
}
