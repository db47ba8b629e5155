package domain

import apperrors "github.com/cripta/envelopesvc/internal/errors"

// Domain-level error sentinels. Each wraps one of the stable error kinds in
// internal/errors so boundary layers can translate them to the response
// envelope without knowing about envelope-specific detail.
var (
	ErrInvalidIdentifierKind = apperrors.Wrap(apperrors.ErrInvalidInput, "unknown identifier kind")
	ErrEmptyIdentifierID     = apperrors.Wrap(apperrors.ErrInvalidInput, "identifier id must not be empty")
	ErrParsingFailed         = apperrors.Wrap(apperrors.ErrInvalidInput, "parsing failed")
	ErrInvalidKeyLength      = apperrors.Wrap(apperrors.ErrInvalidInput, "key must be exactly 32 bytes")
	ErrTruncatedCiphertext   = apperrors.Wrap(apperrors.ErrInvalidInput, "ciphertext shorter than nonce+tag")

	ErrDekNotFound = apperrors.Wrap(apperrors.ErrNotFound, "dek not found")

	ErrUnauthorized = apperrors.Wrap(apperrors.ErrUnauthorized, "custodian token mismatch")

	ErrTenantIDNotFound = apperrors.Wrap(apperrors.ErrInvalidInput, "x-tenant-id header missing")
	ErrInvalidTenantID  = apperrors.Wrap(apperrors.ErrInvalidInput, "unknown tenant id")

	ErrEncryptionFailed = apperrors.New("encryption failed")
	ErrDecryptionFailed = apperrors.New("decryption failed")
	ErrKeyGeneration    = apperrors.New("key generation failed")
)
