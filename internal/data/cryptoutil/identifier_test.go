package cryptoutil

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentifier(t *testing.T) {
	for _, n := range []int{UserIDBytes, MinSessionTokenBytes, DefaultSessionTokenBytes} {
		id, err := NewIdentifier(n)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(id)
		require.NoError(t, err)
		assert.Len(t, raw, n)
		assert.NotContains(t, id, "+")
		assert.NotContains(t, id, "/")
		assert.NotContains(t, id, "=")
	}

	_, err := NewIdentifier(0)
	assert.Error(t, err)
}

func TestNewIdentifier_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id, err := NewIdentifier(DefaultSessionTokenBytes)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNewUserID(t *testing.T) {
	id, err := NewUserID()
	require.NoError(t, err)
	assert.Len(t, id, 20)
}

func TestTokenDigest(t *testing.T) {
	d := TokenDigest("token")
	assert.Len(t, d, 64)
	assert.Equal(t, d, TokenDigest("token"))
	assert.NotEqual(t, d, TokenDigest("token2"))
	assert.Equal(t, d[:12], ShortDigest("token"))
}
