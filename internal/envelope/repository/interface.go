// Package repository defines the DEK store contract every driver-specific
// implementation (postgresql, mysql) satisfies.
package repository

import (
	"context"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// DekRepository is the durable map (tenant, data_id, key_id, version) ->
// wrapped DEK record described in the envelope engine's component design.
// A single DekRepository instance is scoped to one tenant's store (or the
// global store, for User/UserAuth identifiers).
type DekRepository interface {
	// GetOrInsert is idempotent on (DataIdentifier, KeyIdentifier, Version):
	// on a unique-constraint collision it re-reads and returns the
	// pre-existing row instead of erroring.
	GetOrInsert(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error)
	// GetLatestVersion returns the highest version stored for id, or
	// domain.DefaultVersion if none exists yet.
	GetLatestVersion(ctx context.Context, id domain.Identifier) (domain.Version, error)
	// Get fetches the exact (id, version) row, or domain.ErrDekNotFound.
	Get(ctx context.Context, id domain.Identifier, version domain.Version) (*domain.StoredKey, error)
}
