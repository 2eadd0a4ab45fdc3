package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretHash(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 43)

	other, err := NewSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)

	hash, err := HashSecret(secret)
	require.NoError(t, err)
	assert.True(t, CheckSecret(secret, hash))
	assert.False(t, CheckSecret(other, hash))
	assert.False(t, CheckSecret(secret, "not-a-hash"))
}
