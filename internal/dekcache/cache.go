// Package dekcache implements the envelope engine's in-process DEK cache:
// a version cache (identifier -> latest Version) and a key cache
// ((identifier, version) -> decrypted Key), both keyed by a per-tenant
// cache prefix so one process can multiplex several tenants' entries.
//
// github.com/patrickmn/go-cache only supports a single fixed TTL per entry
// with no access-time extension, so TTL and TTI (time-to-idle) are
// collapsed to one duration here (see DESIGN.md). The only cached datum that
// can go stale is "latest version used for encryption", and a stale latest
// is safe to encrypt with; a decrypted key for a given (identifier, version)
// never changes. So a pure-TTL cache preserves every correctness property
// the cache is relied on for.
package dekcache

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Cache holds the two per-tenant caches described above.
type Cache struct {
	prefix   string
	versions *cache.Cache
	keys     *cache.Cache
}

// New builds a Cache for one tenant's cache prefix with the given TTL
// (applied as both TTL and TTI).
func New(prefix string, ttl time.Duration) *Cache {
	cleanup := ttl * 2
	return &Cache{
		prefix:   prefix,
		versions: cache.New(ttl, cleanup),
		keys:     cache.New(ttl, cleanup),
	}
}

func (c *Cache) versionKey(id domain.Identifier) string {
	return fmt.Sprintf("%s/%s/%s", c.prefix, id.Kind, id.ID)
}

func (c *Cache) keyKey(id domain.Identifier, v domain.Version) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.prefix, id.Kind, id.ID, v)
}

// GetVersion returns the cached latest version for id, if present.
func (c *Cache) GetVersion(id domain.Identifier) (domain.Version, bool) {
	v, ok := c.versions.Get(c.versionKey(id))
	if !ok {
		return 0, false
	}
	return v.(domain.Version), true
}

// SetVersion populates the version cache.
func (c *Cache) SetVersion(id domain.Identifier, v domain.Version) {
	c.versions.SetDefault(c.versionKey(id), v)
}

// GetKey returns the cached decrypted Key for (id, version), if present.
func (c *Cache) GetKey(id domain.Identifier, v domain.Version) (domain.Key, bool) {
	k, ok := c.keys.Get(c.keyKey(id, v))
	if !ok {
		return domain.Key{}, false
	}
	return k.(domain.Key), true
}

// SetKey populates the key cache.
func (c *Cache) SetKey(id domain.Identifier, v domain.Version, key domain.Key) {
	c.keys.SetDefault(c.keyKey(id, v), key)
}
