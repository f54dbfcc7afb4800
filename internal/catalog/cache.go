package catalog

import (
	"fmt"
	"log/slog"
	"sync"
)

// Fetcher downloads and parses the catalog for one version.
type Fetcher func(version string) (*Content, error)

// Cache is a version-keyed store of catalog content shared by concurrent
// installers. Entries belong to one installation batch: when the batch key
// changes the whole cache is dropped before the new batch's first lookup, so
// stale cross-session content is never served.
type Cache struct {
	mu       sync.RWMutex
	batchKey string
	entries  map[string]*Content
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Content)}
}

// Get returns the catalog for version, downloading it through fetch on a
// miss. The fast path reads under a shared lock; on a miss the exclusive lock
// is taken and the cache re-checked before downloading, so concurrent callers
// for the same version trigger at most one fetch. A fetch failure leaves the
// cache untouched.
func (c *Cache) Get(version, batchKey string, fetch Fetcher) (*Content, error) {
	c.mu.RLock()
	if c.batchKey == batchKey {
		if content, ok := c.entries[version]; ok {
			c.mu.RUnlock()
			slog.Debug("Catalog served from cache", "version", version)
			return content, nil
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.batchKey != batchKey {
		slog.Debug("Installation batch changed, dropping cached catalogs",
			"previous", c.batchKey, "current", batchKey, "dropped", len(c.entries))
		c.entries = make(map[string]*Content)
		c.batchKey = batchKey
	}

	// Another caller may have populated the entry while we waited.
	if content, ok := c.entries[version]; ok {
		return content, nil
	}

	content, err := fetch(version)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog %s: %w", version, err)
	}

	c.entries[version] = content
	return content, nil
}
