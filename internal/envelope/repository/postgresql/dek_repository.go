// Package postgresql implements the DEK store on top of PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cripta/envelopesvc/internal/database"
	apperrors "github.com/cripta/envelopesvc/internal/errors"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// DekRepository persists wrapped DEKs in a single "deks" table shared by
// every tenant schema this process connects to; callers pick the right
// *sql.DB (tenant-local or global) before constructing a DekRepository.
type DekRepository struct {
	db *sql.DB
}

// New builds a DekRepository over db.
func New(db *sql.DB) *DekRepository {
	return &DekRepository{db: db}
}

func (r *DekRepository) GetOrInsert(ctx context.Context, key *domain.StoredKey) (*domain.StoredKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO deks (data_identifier, key_identifier, wrapped_key_bytes, version, source, token, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW())
			  ON CONFLICT (data_identifier, key_identifier, version) DO NOTHING`

	_, err := querier.ExecContext(
		ctx, query,
		key.DataIdentifier, key.KeyIdentifier, key.WrappedKeyBytes, key.Version, key.Source, key.Token,
	)
	if err != nil && !isUniqueViolation(err) {
		return nil, apperrors.Wrap(err, "failed to insert dek")
	}

	return r.Get(ctx, domain.Identifier{Kind: domain.IdentifierKind(key.DataIdentifier), ID: key.KeyIdentifier}, key.Version)
}

func (r *DekRepository) GetLatestVersion(ctx context.Context, id domain.Identifier) (domain.Version, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT version FROM deks
			  WHERE data_identifier = $1 AND key_identifier = $2
			  ORDER BY version DESC LIMIT 1`

	var version domain.Version
	err := querier.QueryRowContext(ctx, query, id.DataIdentifier(), id.KeyIdentifier()).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultVersion, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get latest dek version")
	}
	return version, nil
}

func (r *DekRepository) Get(ctx context.Context, id domain.Identifier, version domain.Version) (*domain.StoredKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT data_identifier, key_identifier, wrapped_key_bytes, version, source, token, created_at
			  FROM deks WHERE data_identifier = $1 AND key_identifier = $2 AND version = $3`

	var stored domain.StoredKey
	var source string
	err := querier.QueryRowContext(ctx, query, id.DataIdentifier(), id.KeyIdentifier(), version).Scan(
		&stored.DataIdentifier, &stored.KeyIdentifier, &stored.WrappedKeyBytes, &stored.Version, &source, &stored.Token, &stored.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDekNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get dek")
	}
	stored.Source = domain.Source(source)
	return &stored, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
