// Package cloudkms implements the "Cloud KMS" KeyManagement backend: Wrap
// and Unwrap delegate to a remote key held by a cloud provider (AWS KMS,
// GCP KMS, Azure Key Vault) or the in-memory localsecrets driver used in
// tests, via gocloud.dev/secrets. GenerateKey draws the DEK material from
// the local CSPRNG (aead.GenerateKey); it makes no call to the provider.
package cloudkms

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"
	// Blank-imported so their URL schemes register with secrets.OpenKeeper.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/localsecrets"

	"github.com/cripta/envelopesvc/internal/aead"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Backend wraps a gocloud.dev/secrets.Keeper opened against keyURI.
type Backend struct {
	keeper *secrets.Keeper
}

// Open resolves keyURI (e.g. "awskms://alias/my-key", "gcpkms://...",
// "azurekeyvault://...") into a Backend.
func Open(ctx context.Context, keyURI string) (*Backend, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: opening keeper for %q: %w", domain.ErrKeyGeneration, keyURI, err)
	}
	return &Backend{keeper: keeper}, nil
}

func (b *Backend) GenerateKey(_ context.Context) ([]byte, string, error) {
	key, err := aead.GenerateKey()
	if err != nil {
		return nil, "", err
	}
	return key, string(domain.SourceKMS), nil
}

func (b *Backend) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	wrapped, err := b.keeper.Encrypt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: cloud kms: %w", domain.ErrEncryptionFailed, err)
	}
	return wrapped, nil
}

func (b *Backend) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	key, err := b.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: cloud kms: %w", domain.ErrDecryptionFailed, err)
	}
	return key, nil
}

// Close releases the underlying keeper's resources.
func (b *Backend) Close() error {
	return b.keeper.Close()
}
