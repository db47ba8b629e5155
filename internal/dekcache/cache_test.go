package dekcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/dekcache"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

func entityID(t *testing.T, id string) domain.Identifier {
	t.Helper()
	identifier, err := domain.New(domain.KindEntity, id)
	require.NoError(t, err)
	return identifier
}

func TestVersionCache(t *testing.T) {
	cache := dekcache.New("tenant-a", time.Minute)
	id := entityID(t, "e1")

	_, ok := cache.GetVersion(id)
	assert.False(t, ok, "empty cache must miss")

	cache.SetVersion(id, domain.Version(3))
	v, ok := cache.GetVersion(id)
	require.True(t, ok)
	assert.Equal(t, domain.Version(3), v)
}

func TestKeyCache(t *testing.T) {
	cache := dekcache.New("tenant-a", time.Minute)
	id := entityID(t, "e1")

	_, ok := cache.GetKey(id, domain.DefaultVersion)
	assert.False(t, ok)

	key := domain.Key{Identifier: id, Version: domain.DefaultVersion, Source: domain.SourceAESLocal}
	key.KeyBytes[0] = 0xAB
	cache.SetKey(id, domain.DefaultVersion, key)

	got, ok := cache.GetKey(id, domain.DefaultVersion)
	require.True(t, ok)
	assert.Equal(t, key, got)

	// A different version of the same identifier is a distinct entry.
	_, ok = cache.GetKey(id, domain.Version(2))
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	cache := dekcache.New("tenant-a", 10*time.Millisecond)
	id := entityID(t, "e1")

	cache.SetVersion(id, domain.DefaultVersion)
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.GetVersion(id)
	assert.False(t, ok, "entry must expire after the TTL")
}

func TestTenantPrefixesDoNotCollide(t *testing.T) {
	a := dekcache.New("tenant-a", time.Minute)
	b := dekcache.New("tenant-b", time.Minute)
	id := entityID(t, "shared")

	a.SetVersion(id, domain.Version(5))
	_, ok := b.GetVersion(id)
	assert.False(t, ok, "caches are per tenant instance")
}
