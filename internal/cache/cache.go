package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cache handles the on-disk layout under the tool's cache directory:
// downloaded catalogs and bundles, grouped by quality and CDN version.
type Cache struct {
	root string
}

// New creates a cache rooted at dir. An empty dir selects ~/.bdroidx/cache.
func New(dir string) *Cache {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			dir = filepath.Join(".", ".bdroidx", "cache")
		} else {
			dir = filepath.Join(homeDir, ".bdroidx", "cache")
		}
	}
	return &Cache{root: dir}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.root
}

// VersionDir returns the directory for one quality/version pair.
func (c *Cache) VersionDir(quality, version string) string {
	return filepath.Join(c.root, quality, version)
}

// CatalogPath returns where the catalog JSON for a version is kept.
func (c *Cache) CatalogPath(quality, version string) string {
	return filepath.Join(c.VersionDir(quality, version), fmt.Sprintf("catalog_%s.json", version))
}

// BundlePath returns the local path for a downloaded bundle.
func (c *Cache) BundlePath(quality, version, bundleName string) string {
	safeName := strings.ReplaceAll(bundleName, "/", "_")
	safeName = strings.ReplaceAll(safeName, " ", "_")
	return filepath.Join(c.VersionDir(quality, version), safeName)
}

// EnsureDir creates a directory and all parent directories.
func (c *Cache) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists.
func (c *Cache) FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FileSize returns the size of a file, or 0 if it doesn't exist.
func (c *Cache) FileSize(filename string) int64 {
	info, err := os.Stat(filename)
	if err != nil {
		return 0
	}
	return info.Size()
}

// RemoveStaleCatalogs deletes catalog files for versions other than current,
// so a failed run can never resurrect stale catalog data.
func (c *Cache) RemoveStaleCatalogs(quality, current string) error {
	pattern := filepath.Join(c.root, quality, "*", "catalog_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	keep := c.CatalogPath(quality, current)
	for _, m := range matches {
		if m == keep {
			continue
		}
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("removing stale catalog %s: %w", m, err)
		}
	}
	return nil
}
