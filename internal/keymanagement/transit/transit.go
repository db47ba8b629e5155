// Package transit implements the HashiCorp-style "Transit backend"
// KeyManagement backend: generate_key asks Vault transit for random bytes,
// wrap/unwrap call the transit engine's encrypt/decrypt endpoints against a
// named key, and ciphertext is carried as the opaque UTF-8 string Vault
// returns.
package transit

import (
	"context"
	"encoding/base64"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Config describes how to reach a single named transit key.
type Config struct {
	Address     string
	Token       string
	Namespace   string
	TransitPath string
	KeyName     string
}

// Backend talks to a Vault transit mount over the raw HTTP API client.
type Backend struct {
	client      *vaultapi.Client
	transitPath string
	keyName     string
}

// New builds a Backend and verifies the named key exists.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	vaultConfig := vaultapi.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vaultapi.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: transit: creating vault client: %w", domain.ErrKeyGeneration, err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	b := &Backend{client: client, transitPath: cfg.TransitPath, keyName: cfg.KeyName}
	secret, err := client.Logical().ReadWithContext(ctx, b.keyPath())
	if err != nil {
		return nil, fmt.Errorf("%w: transit: key %q not reachable: %w", domain.ErrKeyGeneration, cfg.KeyName, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("%w: transit: key %q not found", domain.ErrKeyGeneration, cfg.KeyName)
	}
	return b, nil
}

func (b *Backend) keyPath() string {
	return fmt.Sprintf("%s/keys/%s", b.transitPath, b.keyName)
}

func (b *Backend) GenerateKey(ctx context.Context) ([]byte, string, error) {
	path := fmt.Sprintf("%s/datakey/plaintext/%s", b.transitPath, b.keyName)
	secret, err := b.client.Logical().WriteWithContext(ctx, path, map[string]any{"bits": domain.KeyLen * 8})
	if err != nil {
		return nil, "", fmt.Errorf("%w: transit: %w", domain.ErrKeyGeneration, err)
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, "", fmt.Errorf("%w: transit: missing plaintext in datakey response", domain.ErrKeyGeneration)
	}
	key, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, "", fmt.Errorf("%w: transit: decoding datakey response: %w", domain.ErrKeyGeneration, err)
	}
	return key, string(domain.SourceHashicorpVault), nil
}

func (b *Backend) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	path := fmt.Sprintf("%s/encrypt/%s", b.transitPath, b.keyName)
	secret, err := b.client.Logical().WriteWithContext(ctx, path, map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transit: %w", domain.ErrEncryptionFailed, err)
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: transit: missing ciphertext in encrypt response", domain.ErrEncryptionFailed)
	}
	return []byte(ciphertext), nil
}

func (b *Backend) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	path := fmt.Sprintf("%s/decrypt/%s", b.transitPath, b.keyName)
	secret, err := b.client.Logical().WriteWithContext(ctx, path, map[string]any{
		"ciphertext": string(wrapped),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transit: %w", domain.ErrDecryptionFailed, err)
	}
	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: transit: missing plaintext in decrypt response", domain.ErrDecryptionFailed)
	}
	key, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: transit: decoding decrypt response: %w", domain.ErrDecryptionFailed, err)
	}
	return key, nil
}

// Rotate triggers Vault-side rotation of the named transit key. Not part of
// the Backend interface: this core never rotates the wrapping key itself,
// only DEKs, but operators may call this from the cripta CLI.
func (b *Backend) Rotate(ctx context.Context) error {
	path := fmt.Sprintf("%s/keys/%s/rotate", b.transitPath, b.keyName)
	_, err := b.client.Logical().WriteWithContext(ctx, path, nil)
	return err
}
