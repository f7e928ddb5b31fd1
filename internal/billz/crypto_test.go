package billz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Encrypt("secret-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-token-value", sealed)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret-token-value", opened)
}

func TestCipher_NonceMakesCiphertextUnique(t *testing.T) {
	c := testCipher(t)

	first, err := c.Encrypt("same-input")
	require.NoError(t, err)
	second, err := c.Encrypt("same-input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCipher_RejectsTamperedCiphertext(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Encrypt("payload")
	require.NoError(t, err)

	_, err = c.Decrypt(sealed[:len(sealed)-4] + "AAAA")
	require.Error(t, err)
}

func TestCipher_RejectsBadKey(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	require.Error(t, err)
}

func TestCipher_RejectsGarbageInput(t *testing.T) {
	c := testCipher(t)

	_, err := c.Decrypt("not base64 %%%")
	require.Error(t, err)

	_, err = c.Decrypt("QUJD")
	require.Error(t, err)
}
