package aead_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/aead"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := aead.GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("hello, envelope")
	blob, err := aead.Seal(key, plaintext)
	require.NoError(t, err)

	got, err := aead.Open(key, blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealNonceUniqueness(t *testing.T) {
	key, err := aead.GenerateKey()
	require.NoError(t, err)

	a, err := aead.Seal(key, []byte("same message"))
	require.NoError(t, err)
	b, err := aead.Seal(key, []byte("same message"))
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b), "two encryptions of the same plaintext must not collide")
}

func TestOpenRejectsTruncatedBlob(t *testing.T) {
	key, err := aead.GenerateKey()
	require.NoError(t, err)

	_, err = aead.Open(key, make([]byte, domain.NonceLen+domain.TagLen-1))
	assert.ErrorIs(t, err, domain.ErrTruncatedCiphertext)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key, err := aead.GenerateKey()
	require.NoError(t, err)
	other, err := aead.GenerateKey()
	require.NoError(t, err)

	blob, err := aead.Seal(key, []byte("secret"))
	require.NoError(t, err)

	_, err = aead.Open(other, blob)
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}

func TestSealRejectsShortKey(t *testing.T) {
	_, err := aead.Seal(make([]byte, 16), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidKeyLength)
}

// TestTransferFidelity exercises S10/S5: a key transferred into the service
// must be decryptable by an independent, stdlib-only AES-256-GCM
// implementation, proving the packed blob format carries no hidden framing.
func TestTransferFidelity(t *testing.T) {
	key := make([]byte, domain.KeyLen) // all-zero key, as in scenario S5
	blob, err := aead.Seal(key, []byte("test"))
	require.NoError(t, err)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce, sealed := blob[:domain.NonceLen], blob[domain.NonceLen:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", string(plaintext))
}
