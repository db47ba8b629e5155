// Package localmaster implements the "local master key" KeyManagement
// backend: DEKs are wrapped with a fixed master key loaded at boot, using
// the envelope engine's own AEAD primitive (AES-256-GCM) or, when
// configured, ChaCha20-Poly1305 as an alternate wrap algorithm for hosts
// without AES-NI.
package localmaster

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cripta/envelopesvc/internal/aead"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Algorithm selects the cipher used to wrap DEKs with the master key. This
// never affects how the DEK itself encrypts application data, which is
// always AES-256-GCM via the aead package.
type Algorithm string

const (
	AlgorithmAESGCM           Algorithm = "aes-gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// Backend wraps DEKs with a Chain of master keys.
type Backend struct {
	chain     *Chain
	algorithm Algorithm
}

// New builds a localmaster Backend. algorithm defaults to AES-GCM for any
// value other than AlgorithmChaCha20Poly1305.
func New(chain *Chain, algorithm Algorithm) *Backend {
	return &Backend{chain: chain, algorithm: algorithm}
}

func (b *Backend) GenerateKey(_ context.Context) ([]byte, string, error) {
	key, err := aead.GenerateKey()
	if err != nil {
		return nil, "", err
	}
	return key, string(domain.SourceAESLocal), nil
}

// Wrap seals key under the active master key, prefixing the wrapped blob
// with "{masterKeyID}:" so Unwrap can find the right key even after
// rotation of the master key itself.
func (b *Backend) Wrap(_ context.Context, key []byte) ([]byte, error) {
	id, masterKey := b.chain.Active()
	sealed, err := b.seal(masterKey, key)
	if err != nil {
		return nil, fmt.Errorf("%w: local master: %w", domain.ErrEncryptionFailed, err)
	}
	return append([]byte(id+":"), sealed...), nil
}

func (b *Backend) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	idx := bytes.IndexByte(wrapped, ':')
	if idx < 0 {
		return nil, fmt.Errorf("%w: local master: wrapped key missing master key id", domain.ErrDecryptionFailed)
	}
	id := string(wrapped[:idx])
	masterKey, ok := b.chain.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: local master: unknown master key id %q", domain.ErrDecryptionFailed, id)
	}
	plain, err := b.open(masterKey, wrapped[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: local master: %w", domain.ErrDecryptionFailed, err)
	}
	return plain, nil
}

func (b *Backend) seal(key, plaintext []byte) ([]byte, error) {
	if b.algorithm == AlgorithmChaCha20Poly1305 {
		gcm, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		return sealWith(gcm, plaintext)
	}
	return aead.Seal(key, plaintext)
}

func (b *Backend) open(key, blob []byte) ([]byte, error) {
	if b.algorithm == AlgorithmChaCha20Poly1305 {
		gcm, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		return openWith(gcm, blob)
	}
	return aead.Open(key, blob)
}

func sealWith(gcm cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openWith(gcm cipher.AEAD, blob []byte) ([]byte, error) {
	n := gcm.NonceSize()
	if len(blob) < n {
		return nil, domain.ErrTruncatedCiphertext
	}
	return gcm.Open(nil, blob[:n], blob[n:], nil)
}
