package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	encoded, err := Hash("admin123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, Verify("admin123", encoded))
	assert.False(t, Verify("admin124", encoded))
	assert.False(t, Verify("", encoded))
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("secret")
	require.NoError(t, err)
	b, err := Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsForeignFormats(t *testing.T) {
	assert.False(t, Verify("admin123", "$2b$12$abcdefghijklmnopqrstuv"))
	assert.False(t, Verify("admin123", "$argon2id$v=19$m=65536,t=1$c2FsdA$aGFzaA"))
	assert.False(t, Verify("admin123", ""))
}
