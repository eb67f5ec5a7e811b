package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESCrypter(t *testing.T) {
	crypter, err := NewAESCrypter("correct horse battery staple", []byte("flowcrm-salt"))
	require.NoError(t, err)

	ciphertext, err := crypter.Encrypt(`{"token":"abc"}`)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "abc")

	again, err := crypter.Encrypt(`{"token":"abc"}`)
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, again, "every encryption uses a fresh nonce")

	plaintext, err := crypter.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, plaintext)
}

func TestAESCrypter_RejectsForeignCiphertexts(t *testing.T) {
	crypter, err := NewAESCrypter("one", []byte("flowcrm-salt"))
	require.NoError(t, err)

	other, err := NewAESCrypter("two", []byte("flowcrm-salt"))
	require.NoError(t, err)

	ciphertext, err := other.Encrypt("secret")
	require.NoError(t, err)

	for _, input := range []string{ciphertext, "not base64!", "c2hvcnQ="} {
		_, err := crypter.Decrypt(input)
		assert.ErrorIs(t, err, ErrDecrypt)
	}
}

func TestNewAESCrypter_Validation(t *testing.T) {
	_, err := NewAESCrypter("", []byte("flowcrm-salt"))
	assert.Error(t, err)

	_, err = NewAESCrypter("passphrase", []byte("salt"))
	assert.Error(t, err)
}
