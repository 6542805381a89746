// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	// Alphanumeric only.
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "unexpected character %q", r)
	}
}

func TestGenerateCodeValue(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		value, err := GenerateCodeValue()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(value, "TC-"))
		assert.Len(t, value, 35)
		assert.False(t, seen[value], "duplicate code value")
		seen[value] = true
	}
}

func TestHashString(t *testing.T) {
	h := HashString("hello")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashString("hello"))
	assert.NotEqual(t, h, HashString("hello2"))
}
