package domain

// Source identifies the provenance of a DEK's wrapping key.
type Source string

const (
	// SourceKMS means the DEK was wrapped by a remote cloud KMS call, or
	// installed directly via transfer.
	SourceKMS Source = "KMS"
	// SourceAESLocal means the DEK's raw bytes were produced by the AEAD
	// primitive's own CSPRNG and wrapped with the local master key.
	SourceAESLocal Source = "AESLocal"
	// SourceHashicorpVault means the DEK was wrapped via a transit backend's
	// encrypt/decrypt endpoints.
	SourceHashicorpVault Source = "HashicorpVault"
)

// NonceLen is the AES-GCM nonce size in bytes (96 bits).
const NonceLen = 12

// TagLen is the AES-GCM authentication tag size in bytes (128 bits).
const TagLen = 16

// KeyLen is the DEK size in bytes (AES-256).
const KeyLen = 32
