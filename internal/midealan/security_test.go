package midealan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := localKey("a1b2c3d4e5f6")

	for _, size := range []int{1, 15, 16, 17, 64} {
		plain := make([]byte, size)
		for i := range plain {
			plain[i] = byte(i)
		}

		sealed, err := encrypt(key, plain)
		require.NoError(t, err)
		assert.Zero(t, len(sealed)%16, "ciphertext must be block aligned")
		assert.NotEqual(t, plain, sealed[:size])

		got, err := decrypt(key, sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestDecrypt_RejectsUnalignedInput(t *testing.T) {
	_, err := decrypt(localKey("k"), []byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecrypt_WrongKeyFailsPadding(t *testing.T) {
	sealed, err := encrypt(localKey("right"), []byte("hello appliance"))
	require.NoError(t, err)

	// With the wrong key, PKCS#7 validation should almost surely fail rather
	// than return garbage silently.
	if got, err := decrypt(localKey("wrong"), sealed); err == nil {
		assert.NotEqual(t, []byte("hello appliance"), got)
	}
}

func TestDeriveSessionKey_DependsOnHandshake(t *testing.T) {
	a := deriveSessionKey("key", []byte{1, 2, 3})
	b := deriveSessionKey("key", []byte{1, 2, 4})
	assert.NotEqual(t, a, b)
}

func TestDecodeToken(t *testing.T) {
	raw, err := decodeToken("a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA1, 0xB2, 0xC3}, raw)

	_, err = decodeToken("not-hex")
	require.Error(t, err)

	_, err = decodeToken("")
	require.Error(t, err)
}
