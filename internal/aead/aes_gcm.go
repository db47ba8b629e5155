// Package aead implements the envelope engine's single AEAD primitive:
// AES-256-GCM over a packed nonce||ciphertext||tag blob with no associated
// data.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Seal encrypts plaintext under key (must be 32 bytes) and returns
// nonce(12) || ciphertext || tag(16). The nonce is drawn fresh from a CSPRNG
// for every call.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, domain.NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce generation: %w", domain.ErrEncryptionFailed, err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open splits blob into its nonce and sealed portion and decrypts it under
// key. It rejects blobs shorter than NonceLen+TagLen before touching the
// cipher.
func Open(key, blob []byte) ([]byte, error) {
	if len(blob) < domain.NonceLen+domain.TagLen {
		return nil, domain.ErrTruncatedCiphertext
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, sealed := blob[:domain.NonceLen], blob[domain.NonceLen:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// GenerateKey returns a fresh 32-byte key from a CSPRNG, the raw material
// for a domain.SourceAESLocal DEK.
func GenerateKey() ([]byte, error) {
	key := make([]byte, domain.KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyGeneration, err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != domain.KeyLen {
		return nil, domain.ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncryptionFailed, err)
	}
	return gcm, nil
}
