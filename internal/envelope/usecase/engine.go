// Package usecase implements the envelope engine: the orchestration layer
// that resolves DEK versions, fetches and unwraps DEKs, enforces custodian
// authorization, and drives the AEAD primitive for single items, batches,
// and batches of batches.
package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cripta/envelopesvc/internal/aead"
	"github.com/cripta/envelopesvc/internal/custodian"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/envelope/repository"
	"github.com/cripta/envelopesvc/internal/tenant"
)

// BusinessMetrics records per-operation counts and durations. Implemented by
// internal/metrics.BusinessMetrics; declared locally so this package doesn't
// depend on the metrics package's otel wiring.
type BusinessMetrics interface {
	RecordOperation(ctx context.Context, domain, operation, status string)
}

const metricsDomain = "envelope"

// Engine is the stateless envelope orchestrator. All state it
// needs (DEK store, cache, KeyManagement backend, worker pool) comes from
// the tenant.State passed into every call.
type Engine struct {
	router  *tenant.Router
	metrics BusinessMetrics
	logger  *slog.Logger
}

// New builds an Engine. metrics and logger may be nil in tests.
func New(router *tenant.Router, metrics BusinessMetrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{router: router, metrics: metrics, logger: logger}
}

// dekRepoFor selects the global or tenant-local DEK store for the kind.
func (e *Engine) dekRepoFor(tenantState *tenant.State, kind domain.IdentifierKind) repository.DekRepository {
	return e.router.StateFor(tenantState, kind).DekRepo
}

func (e *Engine) record(ctx context.Context, operation string, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, metricsDomain, operation, status)
}

// CreatedKey is the response to create/rotate/transfer.
type CreatedKey struct {
	Identifier domain.Identifier
	Version    domain.Version
}

// Create provisions a DEK: version <- cached-or-1 latest, generate a
// fresh DEK, wrap it, persist idempotently.
func (e *Engine) Create(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian) (_ CreatedKey, err error) {
	defer func() { e.record(ctx, "create", err) }()

	version, err := e.latestVersionCached(ctx, tenantState, id)
	if err != nil {
		return CreatedKey{}, err
	}
	created, err := e.writeNewKey(ctx, tenantState, id, version, cust, nil)
	if err != nil {
		return CreatedKey{}, err
	}
	tenantState.Cache.SetVersion(id, created.Version)
	return created, nil
}

// Rotate reads the latest version directly from the store (bypassing the
// cache) and increments it, so a stale cached latest can never cause two
// rotations to collide on the same version. The read and the insert run in
// one transaction on the owning store, so a rotation never observes the
// store mid-write; racing rotations that still read the same latest
// converge on a single stored row via the idempotent insert.
func (e *Engine) Rotate(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian) (_ CreatedKey, err error) {
	defer func() { e.record(ctx, "rotate", err) }()

	owner := e.router.StateFor(tenantState, id.Kind)
	var created CreatedKey
	err = owner.TxMgr.WithTx(ctx, func(txCtx context.Context) error {
		latest, err := owner.DekRepo.GetLatestVersion(txCtx, id)
		if err != nil {
			return err
		}
		created, err = e.writeNewKey(txCtx, tenantState, id, latest.Increment(), cust, nil)
		return err
	})
	if err != nil {
		return CreatedKey{}, err
	}
	tenantState.Cache.SetVersion(id, created.Version)
	return created, nil
}

// Transfer installs a caller-supplied 32-byte key
// at version 1, tagged with source KMS.
func (e *Engine) Transfer(ctx context.Context, tenantState *tenant.State, id domain.Identifier, rawKey []byte, cust custodian.Custodian) (_ CreatedKey, err error) {
	defer func() { e.record(ctx, "transfer", err) }()

	if len(rawKey) != domain.KeyLen {
		return CreatedKey{}, domain.ErrInvalidKeyLength
	}
	created, err := e.writeNewKey(ctx, tenantState, id, domain.DefaultVersion, cust, rawKey)
	if err != nil {
		return CreatedKey{}, err
	}
	tenantState.Cache.SetVersion(id, created.Version)
	return created, nil
}

// writeNewKey wraps suppliedKey (or a freshly generated one) and persists it
// via GetOrInsert. token is computed fresh from cust every call but binds
// only at the moment of the underlying row's creation; GetOrInsert being
// idempotent means a racing writer's token silently loses, which is the
// documented behavior for the create/create race.
func (e *Engine) writeNewKey(ctx context.Context, tenantState *tenant.State, id domain.Identifier, version domain.Version, cust custodian.Custodian, suppliedKey []byte) (CreatedKey, error) {
	backend := tenantState.KeyManager

	var rawKey []byte
	var source string
	if suppliedKey != nil {
		rawKey = suppliedKey
		source = string(domain.SourceKMS)
	} else {
		var err error
		rawKey, source, err = backend.GenerateKey(ctx)
		if err != nil {
			return CreatedKey{}, err
		}
	}

	token, err := cust.IntoAccessToken(tenantState.HashContext)
	if err != nil {
		return CreatedKey{}, err
	}

	wrapped, err := backend.Wrap(ctx, rawKey)
	if err != nil {
		return CreatedKey{}, err
	}

	repo := e.dekRepoFor(tenantState, id.Kind)
	stored, err := repo.GetOrInsert(ctx, &domain.StoredKey{
		DataIdentifier:  id.DataIdentifier(),
		KeyIdentifier:   id.KeyIdentifier(),
		WrappedKeyBytes: wrapped,
		Version:         version,
		Source:          domain.Source(source),
		Token:           token,
	})
	if err != nil {
		return CreatedKey{}, err
	}
	return CreatedKey{Identifier: id, Version: stored.Version}, nil
}

// latestVersionCached implements the cache-backed version lookup used by
// Create and Encrypt: cache hit returns immediately, a miss reads the store
// and populates the cache.
func (e *Engine) latestVersionCached(ctx context.Context, tenantState *tenant.State, id domain.Identifier) (domain.Version, error) {
	if v, ok := tenantState.Cache.GetVersion(id); ok {
		return v, nil
	}
	repo := e.dekRepoFor(tenantState, id.Kind)
	v, err := repo.GetLatestVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	tenantState.Cache.SetVersion(id, v)
	return v, nil
}

// resolveKey implements the cache-backed DEK fetch used throughout encrypt
// and decrypt: on a cache miss, fetch the wrapped row and unwrap it via the
// tenant's KeyManagement backend.
func (e *Engine) resolveKey(ctx context.Context, tenantState *tenant.State, id domain.Identifier, version domain.Version) (domain.Key, error) {
	if k, ok := tenantState.Cache.GetKey(id, version); ok {
		return k, nil
	}

	repo := e.dekRepoFor(tenantState, id.Kind)
	stored, err := repo.Get(ctx, id, version)
	if err != nil {
		return domain.Key{}, err
	}

	raw, err := tenantState.KeyManager.Unwrap(ctx, stored.WrappedKeyBytes)
	if err != nil {
		return domain.Key{}, err
	}
	if len(raw) != domain.KeyLen {
		return domain.Key{}, domain.ErrInvalidKeyLength
	}

	key := domain.Key{Identifier: id, Version: stored.Version, Source: stored.Source, Token: stored.Token}
	copy(key.KeyBytes[:], raw)

	tenantState.Cache.SetKey(id, version, key)
	return key, nil
}

// authorize applies the strict custodian rule: non-Entity
// identifiers are always authorized; Entity identifiers require the stored
// token to exactly equal the presented one, nil included.
func authorize(id domain.Identifier, storedToken *string, cust custodian.Custodian, tenantState *tenant.State) error {
	if !id.Kind.RequiresCustodian() {
		return nil
	}
	presented, err := cust.IntoAccessToken(tenantState.HashContext)
	if err != nil {
		return err
	}
	if !domain.TokensEqual(storedToken, presented) {
		return domain.ErrUnauthorized
	}
	return nil
}

// EncryptSingle encrypts one item under the identifier's latest DEK.
func (e *Engine) EncryptSingle(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, plaintext domain.DecryptedData) (_ domain.EncryptedData, err error) {
	defer func() { e.record(ctx, "encrypt", err) }()

	version, err := e.latestVersionCached(ctx, tenantState, id)
	if err != nil {
		return domain.EncryptedData{}, err
	}
	key, err := e.resolveKey(ctx, tenantState, id, version)
	if err != nil {
		return domain.EncryptedData{}, err
	}
	if err := authorize(id, key.Token, cust, tenantState); err != nil {
		return domain.EncryptedData{}, err
	}

	blob, err := aead.Seal(key.KeyBytes[:], plaintext)
	if err != nil {
		return domain.EncryptedData{}, err
	}
	return domain.EncryptedData{Version: key.Version, Blob: blob}, nil
}

// DecryptSingle decrypts one item with the DEK named by its embedded version.
func (e *Engine) DecryptSingle(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, encrypted domain.EncryptedData) (_ domain.DecryptedData, err error) {
	defer func() { e.record(ctx, "decrypt", err) }()

	key, err := e.resolveKey(ctx, tenantState, id, encrypted.Version)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, key.Token, cust, tenantState); err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(key.KeyBytes[:], encrypted.Blob)
	if err != nil {
		return nil, err
	}
	return domain.DecryptedData(plaintext), nil
}

// EncryptBatch encrypts a homogeneous group: one DEK resolution, one
// auth-check, then a parallel map over the group using the tenant's bounded
// worker pool.
func (e *Engine) EncryptBatch(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, group domain.DecryptedDataGroup) (_ domain.EncryptedDataGroup, err error) {
	defer func() { e.record(ctx, "encrypt_batch", err) }()

	version, err := e.latestVersionCached(ctx, tenantState, id)
	if err != nil {
		return nil, err
	}
	key, err := e.resolveKey(ctx, tenantState, id, version)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, key.Token, cust, tenantState); err != nil {
		return nil, err
	}

	return e.parallelEncrypt(ctx, tenantState, key, group)
}

func (e *Engine) parallelEncrypt(ctx context.Context, tenantState *tenant.State, key domain.Key, group domain.DecryptedDataGroup) (domain.EncryptedDataGroup, error) {
	result := make(domain.EncryptedDataGroup, len(group))
	var mu sync.Mutex
	g, gctx := tenantState.NewWorkerGroup(ctx)
	for k, plaintext := range group {
		k, plaintext := k, plaintext
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			blob, err := aead.Seal(key.KeyBytes[:], plaintext)
			if err != nil {
				return err
			}
			mu.Lock()
			result[k] = domain.EncryptedData{Version: key.Version, Blob: blob}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// DecryptBatch decrypts a group: resolve and unwrap every
// distinct referenced version in parallel, auth-check all of them for
// Entity identifiers, then map each item against its version's DEK.
func (e *Engine) DecryptBatch(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, group domain.EncryptedDataGroup) (_ domain.DecryptedDataGroup, err error) {
	defer func() { e.record(ctx, "decrypt_batch", err) }()

	versions := distinctVersions(group)
	keys, err := e.resolveKeysParallel(ctx, tenantState, id, versions)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := authorize(id, key.Token, cust, tenantState); err != nil {
			return nil, err
		}
	}

	result := make(domain.DecryptedDataGroup, len(group))
	var mu sync.Mutex
	g, gctx := tenantState.NewWorkerGroup(ctx)
	for k, item := range group {
		k, item := k, item
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			key := keys[item.Version]
			plaintext, err := aead.Open(key.KeyBytes[:], item.Blob)
			if err != nil {
				return err
			}
			mu.Lock()
			result[k] = domain.DecryptedData(plaintext)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func distinctVersions(group domain.EncryptedDataGroup) []domain.Version {
	seen := make(map[domain.Version]struct{})
	var out []domain.Version
	for _, item := range group {
		if _, ok := seen[item.Version]; !ok {
			seen[item.Version] = struct{}{}
			out = append(out, item.Version)
		}
	}
	return out
}

func (e *Engine) resolveKeysParallel(ctx context.Context, tenantState *tenant.State, id domain.Identifier, versions []domain.Version) (map[domain.Version]domain.Key, error) {
	results := make(map[domain.Version]domain.Key, len(versions))
	var mu sync.Mutex
	g, gctx := tenantState.NewWorkerGroup(ctx)
	for _, v := range versions {
		v := v
		g.Go(func() error {
			key, err := e.resolveKey(gctx, tenantState, id, v)
			if err != nil {
				return err
			}
			mu.Lock()
			results[v] = key
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EncryptMultiBatch encrypts a sequence of groups: the DEK is resolved
// once (encrypt always uses the current latest), then every group in the
// sequence is encrypted in parallel, each group itself fanning its items out
// in parallel.
func (e *Engine) EncryptMultiBatch(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, groups domain.MultipleDecryptionDataGroup) (_ domain.MultipleEncryptionDataGroup, err error) {
	defer func() { e.record(ctx, "encrypt_multibatch", err) }()

	version, err := e.latestVersionCached(ctx, tenantState, id)
	if err != nil {
		return nil, err
	}
	key, err := e.resolveKey(ctx, tenantState, id, version)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, key.Token, cust, tenantState); err != nil {
		return nil, err
	}

	result := make(domain.MultipleEncryptionDataGroup, len(groups))
	g, gctx := tenantState.NewWorkerGroup(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			encrypted, err := e.parallelEncrypt(gctx, tenantState, key, group)
			if err != nil {
				return err
			}
			result[i] = encrypted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// DecryptMultiBatch decrypts a sequence of groups: every version
// referenced anywhere in the sequence is resolved once up front, then every
// group is decrypted in parallel.
func (e *Engine) DecryptMultiBatch(ctx context.Context, tenantState *tenant.State, id domain.Identifier, cust custodian.Custodian, groups domain.MultipleEncryptionDataGroup) (_ domain.MultipleDecryptionDataGroup, err error) {
	defer func() { e.record(ctx, "decrypt_multibatch", err) }()

	seen := make(map[domain.Version]struct{})
	var versions []domain.Version
	for _, group := range groups {
		for _, item := range group {
			if _, ok := seen[item.Version]; !ok {
				seen[item.Version] = struct{}{}
				versions = append(versions, item.Version)
			}
		}
	}

	keys, err := e.resolveKeysParallel(ctx, tenantState, id, versions)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := authorize(id, key.Token, cust, tenantState); err != nil {
			return nil, err
		}
	}

	result := make(domain.MultipleDecryptionDataGroup, len(groups))
	g, gctx := tenantState.NewWorkerGroup(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			decrypted := make(domain.DecryptedDataGroup, len(group))
			var mu sync.Mutex
			inner, innerCtx := tenantState.NewWorkerGroup(gctx)
			for k, item := range group {
				k, item := k, item
				inner.Go(func() error {
					select {
					case <-innerCtx.Done():
						return innerCtx.Err()
					default:
					}
					key := keys[item.Version]
					plaintext, err := aead.Open(key.KeyBytes[:], item.Blob)
					if err != nil {
						return err
					}
					mu.Lock()
					decrypted[k] = domain.DecryptedData(plaintext)
					mu.Unlock()
					return nil
				})
			}
			if err := inner.Wait(); err != nil {
				return err
			}
			result[i] = decrypted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
