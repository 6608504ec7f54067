package relay

import (
	"sync"

	"github.com/topicgate/topicgate/internal/mapping"
)

// ValidityCache remembers which source keys had their destination topic
// confirmed alive since process start. It is an optimization only:
// entries are dropped on invalidation and the cache starts empty, so
// every cold key is re-verified against the destination before use.
type ValidityCache struct {
	mu    sync.RWMutex
	valid map[mapping.SourceKey]struct{}
}

// NewValidityCache creates an empty cache.
func NewValidityCache() *ValidityCache {
	return &ValidityCache{valid: make(map[mapping.SourceKey]struct{})}
}

// Has reports whether key was confirmed alive in this process lifetime.
func (c *ValidityCache) Has(key mapping.SourceKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.valid[key]
	return ok
}

// Mark records key as confirmed alive.
func (c *ValidityCache) Mark(key mapping.SourceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid[key] = struct{}{}
}

// Drop forgets key. Called whenever the destination reports the topic
// gone.
func (c *ValidityCache) Drop(key mapping.SourceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.valid, key)
}

// Len returns the number of confirmed keys.
func (c *ValidityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.valid)
}
