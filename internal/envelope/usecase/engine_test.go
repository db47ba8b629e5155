package usecase_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/custodian"
	"github.com/cripta/envelopesvc/internal/database"
	"github.com/cripta/envelopesvc/internal/dekcache"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/envelope/repository"
	"github.com/cripta/envelopesvc/internal/envelope/usecase"
	"github.com/cripta/envelopesvc/internal/tenant"
)

const testCacheTTL = time.Minute

// memDekRepository is an in-memory repository.DekRepository used only by
// these tests; it mirrors the idempotent get_or_insert contract without a
// real database.
type memDekRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.StoredKey
}

func newMemDekRepository() *memDekRepository {
	return &memDekRepository{rows: make(map[string]*domain.StoredKey)}
}

func (m *memDekRepository) key(dataID, keyID string, v domain.Version) string {
	return dataID + "/" + keyID + "/" + v.String()
}

func (m *memDekRepository) GetOrInsert(_ context.Context, key *domain.StoredKey) (*domain.StoredKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(key.DataIdentifier, key.KeyIdentifier, key.Version)
	if existing, ok := m.rows[k]; ok {
		return existing, nil
	}
	stored := *key
	m.rows[k] = &stored
	return &stored, nil
}

func (m *memDekRepository) GetLatestVersion(_ context.Context, id domain.Identifier) (domain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest domain.Version
	found := false
	for _, row := range m.rows {
		if row.DataIdentifier == id.DataIdentifier() && row.KeyIdentifier == id.KeyIdentifier() {
			if !found || row.Version > latest {
				latest = row.Version
				found = true
			}
		}
	}
	if !found {
		return domain.DefaultVersion, nil
	}
	return latest, nil
}

func (m *memDekRepository) Get(_ context.Context, id domain.Identifier, version domain.Version) (*domain.StoredKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[m.key(id.DataIdentifier(), id.KeyIdentifier(), version)]
	if !ok {
		return nil, domain.ErrDekNotFound
	}
	return row, nil
}

var _ repository.DekRepository = (*memDekRepository)(nil)

// xorBackend is a trivial reversible KeyManagement backend for tests: wrap
// XORs every byte with 0xFF, unwrap reverses it. No real cryptography, but
// exercises the engine's generate/wrap/unwrap contract end-to-end.
type xorBackend struct{}

func (xorBackend) GenerateKey(_ context.Context) ([]byte, string, error) {
	key := make([]byte, domain.KeyLen)
	for i := range key {
		key[i] = byte(i)
	}
	return key, string(domain.SourceAESLocal), nil
}

func (xorBackend) Wrap(_ context.Context, key []byte) ([]byte, error) {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ 0xFF
	}
	return out, nil
}

func (xorBackend) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	out := make([]byte, len(wrapped))
	for i, b := range wrapped {
		out[i] = b ^ 0xFF
	}
	return out, nil
}

// passthroughTxManager satisfies database.TxManager without a real
// database; the in-memory repository has no transaction to join.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ database.TxManager = passthroughTxManager{}

func newTestState() *tenant.State {
	return &tenant.State{
		KeyManager:  xorBackend{},
		HashContext: custodian.TenantHashContext{Context: "envelopesvc test", Secret: []byte("tenant-secret")},
		DekRepo:     newMemDekRepository(),
		TxMgr:       passthroughTxManager{},
		Cache:       dekcache.New("test", testCacheTTL),
		WorkerPool:  4,
	}
}

func newTestRouter() (*tenant.Router, *tenant.State, *tenant.State) {
	global := newTestState()
	public := newTestState()
	router := tenant.NewRouter(global)
	router.Register("public", public)
	return router, global, public
}

func TestEngineSingleRoundTrip(t *testing.T) {
	router, _, public := newTestRouter()
	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindUser, "u1")
	require.NoError(t, err)

	created, err := engine.Create(ctx, public, id, custodian.Custodian{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVersion, created.Version)

	encrypted, err := engine.EncryptSingle(ctx, public, id, custodian.Custodian{}, domain.DecryptedData("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVersion, encrypted.Version)

	decrypted, err := engine.DecryptSingle(ctx, public, id, custodian.Custodian{}, encrypted)
	require.NoError(t, err)
	assert.Equal(t, domain.DecryptedData("hello"), decrypted)
}

func TestEngineRotateKeepsOldVersionReadable(t *testing.T) {
	router, _, public := newTestRouter()
	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindMerchant, "m1")
	require.NoError(t, err)

	_, err = engine.Create(ctx, public, id, custodian.Custodian{})
	require.NoError(t, err)

	v1Cipher, err := engine.EncryptSingle(ctx, public, id, custodian.Custodian{}, domain.DecryptedData("v1 data"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVersion, v1Cipher.Version)

	rotated, err := engine.Rotate(ctx, public, id, custodian.Custodian{})
	require.NoError(t, err)
	assert.Equal(t, domain.Version(2), rotated.Version)

	v2Cipher, err := engine.EncryptSingle(ctx, public, id, custodian.Custodian{}, domain.DecryptedData("v2 data"))
	require.NoError(t, err)
	assert.Equal(t, domain.Version(2), v2Cipher.Version)

	decryptedV1, err := engine.DecryptSingle(ctx, public, id, custodian.Custodian{}, v1Cipher)
	require.NoError(t, err)
	assert.Equal(t, domain.DecryptedData("v1 data"), decryptedV1)
}

func TestEngineEntityAuthorization(t *testing.T) {
	router, _, public := newTestRouter()
	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindEntity, "e1")
	require.NoError(t, err)

	custA, err := custodian.FromHeader("Basic " + basicAuth("u", "p"))
	require.NoError(t, err)
	custB, err := custodian.FromHeader("Basic " + basicAuth("u", "q"))
	require.NoError(t, err)

	_, err = engine.Create(ctx, public, id, custA)
	require.NoError(t, err)

	encrypted, err := engine.EncryptSingle(ctx, public, id, custA, domain.DecryptedData("secret"))
	require.NoError(t, err)

	_, err = engine.DecryptSingle(ctx, public, id, custB, encrypted)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = engine.DecryptSingle(ctx, public, id, custodian.Custodian{}, encrypted)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	decrypted, err := engine.DecryptSingle(ctx, public, id, custA, encrypted)
	require.NoError(t, err)
	assert.Equal(t, domain.DecryptedData("secret"), decrypted)
}

func TestEngineBatchRoundTrip(t *testing.T) {
	router, _, public := newTestRouter()
	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindMerchant, "m-batch")
	require.NoError(t, err)

	_, err = engine.Create(ctx, public, id, custodian.Custodian{})
	require.NoError(t, err)

	group := domain.DecryptedDataGroup{
		"a": domain.DecryptedData([]byte{0, 0, 0, 0}),
		"b": domain.DecryptedData([]byte{1, 1, 1}),
	}

	encrypted, err := engine.EncryptBatch(ctx, public, id, custodian.Custodian{}, group)
	require.NoError(t, err)
	assert.Len(t, encrypted, 2)

	decrypted, err := engine.DecryptBatch(ctx, public, id, custodian.Custodian{}, encrypted)
	require.NoError(t, err)
	assert.Equal(t, group, decrypted)
}

func TestEngineTenantIsolation(t *testing.T) {
	router := tenant.NewRouter(newTestState())
	tenantA := newTestState()
	tenantB := newTestState()
	router.Register("tenant-a", tenantA)
	router.Register("tenant-b", tenantB)

	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindMerchant, "shared-id")
	require.NoError(t, err)

	_, err = engine.Create(ctx, tenantA, id, custodian.Custodian{})
	require.NoError(t, err)

	encrypted, err := engine.EncryptSingle(ctx, tenantA, id, custodian.Custodian{}, domain.DecryptedData("tenant a data"))
	require.NoError(t, err)

	_, err = engine.DecryptSingle(ctx, tenantB, id, custodian.Custodian{}, encrypted)
	assert.Error(t, err)
}

func TestEngineTransferFidelity(t *testing.T) {
	router, _, public := newTestRouter()
	engine := usecase.New(router, nil, nil)
	ctx := context.Background()

	id, err := domain.New(domain.KindMerchant, "transferred")
	require.NoError(t, err)

	key := make([]byte, domain.KeyLen)
	created, err := engine.Transfer(ctx, public, id, key, custodian.Custodian{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVersion, created.Version)

	encrypted, err := engine.EncryptSingle(ctx, public, id, custodian.Custodian{}, domain.DecryptedData("test"))
	require.NoError(t, err)

	decrypted, err := engine.DecryptSingle(ctx, public, id, custodian.Custodian{}, encrypted)
	require.NoError(t, err)
	assert.Equal(t, domain.DecryptedData("test"), decrypted)
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
