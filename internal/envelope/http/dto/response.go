package dto

import (
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/envelope/usecase"
)

// DataKeyCreateResponse is the response body for create/rotate/transfer.
type DataKeyCreateResponse struct {
	Identifier IdentifierDTO `json:"identifier"`
	Version    string        `json:"key_version"`
}

// MapCreatedKey converts the use case's result to its wire form.
func MapCreatedKey(created usecase.CreatedKey) DataKeyCreateResponse {
	return DataKeyCreateResponse{
		Identifier: FromDomain(created.Identifier),
		Version:    created.Version.String(),
	}
}

// EncryptionResponse mirrors EncryptDataRequest's shape space: Data holds a
// domain.EncryptedData, domain.EncryptedDataGroup, or
// domain.MultipleEncryptionDataGroup, each of which already knows how to
// marshal itself to the correct wire form.
type EncryptionResponse struct {
	Identifier IdentifierDTO `json:"identifier"`
	Data       interface{}   `json:"data"`
}

func MapEncryptionResponseSingle(id domain.Identifier, data domain.EncryptedData) EncryptionResponse {
	return EncryptionResponse{Identifier: FromDomain(id), Data: data}
}

func MapEncryptionResponseBatch(id domain.Identifier, data domain.EncryptedDataGroup) EncryptionResponse {
	return EncryptionResponse{Identifier: FromDomain(id), Data: data}
}

func MapEncryptionResponseMultiBatch(id domain.Identifier, data domain.MultipleEncryptionDataGroup) EncryptionResponse {
	return EncryptionResponse{Identifier: FromDomain(id), Data: data}
}

// DecryptionResponse mirrors DecryptionRequest's shape space.
type DecryptionResponse struct {
	Identifier IdentifierDTO `json:"identifier"`
	Data       interface{}   `json:"data"`
}

func MapDecryptionResponseSingle(id domain.Identifier, data domain.DecryptedData) DecryptionResponse {
	return DecryptionResponse{Identifier: FromDomain(id), Data: data}
}

func MapDecryptionResponseBatch(id domain.Identifier, data domain.DecryptedDataGroup) DecryptionResponse {
	return DecryptionResponse{Identifier: FromDomain(id), Data: data}
}

func MapDecryptionResponseMultiBatch(id domain.Identifier, data domain.MultipleDecryptionDataGroup) DecryptionResponse {
	return DecryptionResponse{Identifier: FromDomain(id), Data: data}
}
