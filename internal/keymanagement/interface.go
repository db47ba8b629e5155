// Package keymanagement defines the uniform capability interface that the
// envelope engine uses to generate and wrap/unwrap DEKs, independent of
// which backend (cloud KMS, HashiCorp-style transit, or a local master key)
// actually holds the wrapping key.
package keymanagement

import "context"

// Backend generates raw DEK material and wraps/unwraps it for storage. All
// three methods must be safe for concurrent use; implementations normally
// hold a single shared client.
type Backend interface {
	// GenerateKey returns 32 bytes of fresh DEK material and the Source tag
	// that should be recorded alongside it.
	GenerateKey(ctx context.Context) (key []byte, source string, err error)
	// Wrap protects key for storage, returning an opaque byte string.
	Wrap(ctx context.Context, key []byte) ([]byte, error)
	// Unwrap reverses Wrap.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}
