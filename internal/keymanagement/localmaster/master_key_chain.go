package localmaster

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Chain holds one or more master keys, keyed by an operator-chosen id. The
// active id is used to wrap new DEKs; any id present in the chain can still
// unwrap, so rotating the master key never breaks previously wrapped DEKs.
type Chain struct {
	mu       sync.RWMutex
	activeID string
	keys     map[string][]byte
}

// NewChain builds a Chain from a set of (id, key) pairs. keys must contain
// activeID and every key must be exactly 32 bytes.
func NewChain(activeID string, keys map[string][]byte) (*Chain, error) {
	if activeID == "" {
		return nil, fmt.Errorf("%w: active master key id not set", domain.ErrKeyGeneration)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no master keys configured", domain.ErrKeyGeneration)
	}
	if _, ok := keys[activeID]; !ok {
		return nil, fmt.Errorf("%w: active master key id %q not present in chain", domain.ErrKeyGeneration, activeID)
	}
	for id, key := range keys {
		if len(key) != domain.KeyLen {
			return nil, fmt.Errorf("%w: master key %q", domain.ErrInvalidKeyLength, id)
		}
	}
	return &Chain{activeID: activeID, keys: keys}, nil
}

// ParseMasterKeys parses the "id:base64key,id2:base64key2" env var format.
func ParseMasterKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.IndexByte(entry, ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: master key entry %q missing id", domain.ErrParsingFailed, entry)
		}
		id := entry[:idx]
		key, err := base64.StdEncoding.DecodeString(entry[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: master key %q: %w", domain.ErrParsingFailed, id, err)
		}
		keys[id] = key
	}
	return keys, nil
}

// Active returns the currently active master key id and its bytes.
func (c *Chain) Active() (id string, key []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID, c.keys[c.activeID]
}

// Get returns the key registered under id.
func (c *Chain) Get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[id]
	return key, ok
}

// Close zeroes every key in the chain. Call once during shutdown.
func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, key := range c.keys {
		for i := range key {
			key[i] = 0
		}
		delete(c.keys, id)
	}
}
