package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DecryptedData is an opaque application-data buffer. It marshals as a
// standard-alphabet, padded base64 string.
type DecryptedData []byte

func (d DecryptedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(d))
}

func (d *DecryptedData) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: decrypted data must be a base64 string", ErrParsingFailed)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: invalid base64: %w", ErrParsingFailed, err)
	}
	*d = b
	return nil
}

// EncryptedData carries the version that produced it alongside the packed
// AEAD blob. It marshals to "v{n}:{base64(nonce||ciphertext||tag)}".
type EncryptedData struct {
	Version Version
	Blob    []byte
}

func (e EncryptedData) String() string {
	return fmt.Sprintf("%s:%s", e.Version, base64.StdEncoding.EncodeToString(e.Blob))
}

func (e EncryptedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EncryptedData) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: encrypted data must be a string", ErrParsingFailed)
	}
	parsed, err := ParseEncryptedData(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEncryptedData parses the "v{n}:{base64}" wire form.
func ParseEncryptedData(s string) (EncryptedData, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return EncryptedData{}, fmt.Errorf("%w: encrypted data %q missing version separator", ErrParsingFailed, s)
	}
	version, err := ParseVersion(s[:idx])
	if err != nil {
		return EncryptedData{}, err
	}
	blob, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return EncryptedData{}, fmt.Errorf("%w: invalid base64: %w", ErrParsingFailed, err)
	}
	return EncryptedData{Version: version, Blob: blob}, nil
}

// DecryptedDataGroup is a homogeneous batch of decrypted items keyed by an
// arbitrary caller-supplied string.
type DecryptedDataGroup map[string]DecryptedData

// EncryptedDataGroup is the encrypted counterpart of DecryptedDataGroup,
// preserving the same key set.
type EncryptedDataGroup map[string]EncryptedData

// MultipleDecryptionDataGroup is an ordered sequence of decrypted batches.
type MultipleDecryptionDataGroup []DecryptedDataGroup

// MultipleEncryptionDataGroup is an ordered sequence of encrypted batches.
type MultipleEncryptionDataGroup []EncryptedDataGroup
