package lanauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := DeriveKey("shared-secret")
	require.NoError(t, err)

	plaintext := []byte(`{"type":"Clipboard","data":"hello"}`)
	ciphertext, err := Seal(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decoded, err := Open(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	key1, err := DeriveKey("psk-one")
	require.NoError(t, err)
	key2, err := DeriveKey("psk-two")
	require.NoError(t, err)

	ciphertext, err := Seal([]byte("secret"), key1)
	require.NoError(t, err)

	_, err = Open(ciphertext, key2)
	assert.Error(t, err, "a frame encrypted under one psk must not decrypt under another")
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	key, err := DeriveKey("psk")
	require.NoError(t, err)

	_, err = Open([]byte("too short"), key)
	assert.Error(t, err)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	k1, err := DeriveKey("same-psk")
	require.NoError(t, err)
	k2, err := DeriveKey("same-psk")
	require.NoError(t, err)
	assert.Equal(t, *k1, *k2)
}
