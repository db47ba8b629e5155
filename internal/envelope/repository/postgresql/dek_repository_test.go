package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

func TestDekRepositoryGetOrInsert_NewRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	key := &domain.StoredKey{
		DataIdentifier:  "Entity",
		KeyIdentifier:   "e1",
		WrappedKeyBytes: []byte("wrapped"),
		Version:         domain.DefaultVersion,
		Source:          domain.SourceAESLocal,
	}

	mock.ExpectExec("INSERT INTO deks").
		WithArgs(key.DataIdentifier, key.KeyIdentifier, key.WrappedKeyBytes, key.Version, key.Source, key.Token).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rows := sqlmock.NewRows([]string{"data_identifier", "key_identifier", "wrapped_key_bytes", "version", "source", "token", "created_at"}).
		AddRow(key.DataIdentifier, key.KeyIdentifier, key.WrappedKeyBytes, key.Version, string(key.Source), key.Token, time.Now())
	mock.ExpectQuery("SELECT data_identifier, key_identifier, wrapped_key_bytes, version, source, token, created_at").
		WithArgs("Entity", "e1", key.Version).
		WillReturnRows(rows)

	got, err := repo.GetOrInsert(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, key.KeyIdentifier, got.KeyIdentifier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDekRepositoryGetLatestVersionDefaultsToOne(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	mock.ExpectQuery("SELECT version FROM deks").
		WithArgs("Merchant", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	v, err := repo.GetLatestVersion(context.Background(), domain.Identifier{Kind: domain.KindMerchant, ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVersion, v)
}

func TestDekRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	mock.ExpectQuery("SELECT data_identifier, key_identifier, wrapped_key_bytes, version, source, token, created_at").
		WithArgs("Merchant", "m1", domain.DefaultVersion).
		WillReturnRows(sqlmock.NewRows([]string{"data_identifier", "key_identifier", "wrapped_key_bytes", "version", "source", "token", "created_at"}))

	_, err = repo.Get(context.Background(), domain.Identifier{Kind: domain.KindMerchant, ID: "m1"}, domain.DefaultVersion)
	assert.ErrorIs(t, err, domain.ErrDekNotFound)
}
