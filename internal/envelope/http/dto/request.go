// Package dto provides data transfer objects for the envelope control
// surface's HTTP request and response handling.
package dto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	validation "github.com/jellydator/validation"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
	apperrors "github.com/cripta/envelopesvc/internal/errors"
	customValidation "github.com/cripta/envelopesvc/internal/validation"
)

// IdentifierDTO is the wire form of domain.Identifier:
// {"data_identifier":"User|Merchant|UserAuth|Entity","key_identifier":"..."}.
type IdentifierDTO struct {
	DataIdentifier string `json:"data_identifier"`
	KeyIdentifier  string `json:"key_identifier"`
}

// Validate checks the two fields are present; the kind itself is validated
// by ToDomain, which is the single source of truth for valid kinds.
func (i IdentifierDTO) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.DataIdentifier, validation.Required, customValidation.NotBlank),
		validation.Field(&i.KeyIdentifier, validation.Required, customValidation.NotBlank),
	)
}

// ToDomain converts the DTO to a domain.Identifier, rejecting unknown kinds.
func (i IdentifierDTO) ToDomain() (domain.Identifier, error) {
	return domain.New(domain.IdentifierKind(i.DataIdentifier), i.KeyIdentifier)
}

// FromDomain renders a domain.Identifier back to wire form.
func FromDomain(id domain.Identifier) IdentifierDTO {
	return IdentifierDTO{DataIdentifier: id.DataIdentifier(), KeyIdentifier: id.KeyIdentifier()}
}

// CreateDataKeyRequest is the POST /key/create body.
type CreateDataKeyRequest struct {
	Identifier IdentifierDTO `json:"identifier"`
}

func (r *CreateDataKeyRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Identifier))
}

// RotateDataKeyRequest is the POST /key/rotate body.
type RotateDataKeyRequest struct {
	Identifier IdentifierDTO `json:"identifier"`
}

func (r *RotateDataKeyRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Identifier))
}

// TransferKeyRequest is the POST /key/transfer body: installs a
// caller-supplied 32-byte key at version 1.
type TransferKeyRequest struct {
	Identifier IdentifierDTO `json:"identifier"`
	Key        string        `json:"key"` // base64(32 bytes)
}

func (r *TransferKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identifier),
		validation.Field(&r.Key, validation.Required, customValidation.NotBlank, customValidation.Base64),
	)
}

// DecodeKey base64-decodes the supplied key material.
func (r *TransferKeyRequest) DecodeKey() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(r.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 key: %w", apperrors.ErrInvalidInput, err)
	}
	return raw, nil
}

// DataShape identifies which of the three shapes a "data" field's raw JSON
// carries, dispatched by its first byte: string -> Single, object -> Batch,
// array -> MultiBatch.
type DataShape int

const (
	ShapeSingle DataShape = iota
	ShapeBatch
	ShapeMultiBatch
)

func sniffShape(raw json.RawMessage) (DataShape, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: data field is required", apperrors.ErrInvalidInput)
	}
	switch trimmed[0] {
	case '"':
		return ShapeSingle, nil
	case '{':
		return ShapeBatch, nil
	case '[':
		return ShapeMultiBatch, nil
	default:
		return 0, fmt.Errorf("%w: data must be a base64 string, an object, or an array of objects", apperrors.ErrInvalidInput)
	}
}

// EncryptDataRequest is the POST /data/encrypt body.
type EncryptDataRequest struct {
	Identifier IdentifierDTO   `json:"identifier"`
	Data       json.RawMessage `json:"data"`
}

func (r *EncryptDataRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identifier),
		validation.Field(&r.Data, validation.Required),
	)
}

// Shape reports which of Single/Batch/MultiBatch the request's data field
// holds.
func (r *EncryptDataRequest) Shape() (DataShape, error) { return sniffShape(r.Data) }

func (r *EncryptDataRequest) AsSingle() (domain.DecryptedData, error) {
	var d domain.DecryptedData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *EncryptDataRequest) AsBatch() (domain.DecryptedDataGroup, error) {
	var g domain.DecryptedDataGroup
	if err := json.Unmarshal(r.Data, &g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *EncryptDataRequest) AsMultiBatch() (domain.MultipleDecryptionDataGroup, error) {
	var g domain.MultipleDecryptionDataGroup
	if err := json.Unmarshal(r.Data, &g); err != nil {
		return nil, err
	}
	return g, nil
}

// DecryptionRequest is the POST /data/decrypt body.
type DecryptionRequest struct {
	Identifier IdentifierDTO   `json:"identifier"`
	Data       json.RawMessage `json:"data"`
}

func (r *DecryptionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identifier),
		validation.Field(&r.Data, validation.Required),
	)
}

func (r *DecryptionRequest) Shape() (DataShape, error) { return sniffShape(r.Data) }

func (r *DecryptionRequest) AsSingle() (domain.EncryptedData, error) {
	var d domain.EncryptedData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return domain.EncryptedData{}, err
	}
	return d, nil
}

func (r *DecryptionRequest) AsBatch() (domain.EncryptedDataGroup, error) {
	var g domain.EncryptedDataGroup
	if err := json.Unmarshal(r.Data, &g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *DecryptionRequest) AsMultiBatch() (domain.MultipleEncryptionDataGroup, error) {
	var g domain.MultipleEncryptionDataGroup
	if err := json.Unmarshal(r.Data, &g); err != nil {
		return nil, err
	}
	return g, nil
}
