package domain

import "time"

// Key is a decrypted DEK, ready for use by the AEAD primitive.
type Key struct {
	Identifier Identifier
	Version    Version
	KeyBytes   [KeyLen]byte
	Source     Source
	// Token is the access token bound to this DEK at creation time. Absent
	// (nil) means unrestricted.
	Token *string
}

// StoredKey is the wrapped, persisted form of a Key. Its primary key is
// (KeyIdentifier, DataIdentifier, Version).
type StoredKey struct {
	DataIdentifier  string
	KeyIdentifier   string
	WrappedKeyBytes []byte
	Version         Version
	Source          Source
	Token           *string
	CreatedAt       time.Time
}

// TokensEqual implements the strict custodian equality rule: a nil stored
// token matches only a nil presented token, never a wildcard.
func TokensEqual(stored, presented *string) bool {
	if stored == nil || presented == nil {
		return stored == nil && presented == nil
	}
	return *stored == *presented
}
