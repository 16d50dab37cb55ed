package texture

import (
	"image"
	"io/fs"
	"sync"

	"ibr-renderer/internal/logger"
)

// Resolver resolves a texture name to a decoded image.
type Resolver interface {
	Resolve(texName string) *image.NRGBA
}

// Cache is a concurrency-safe texture cache over a scene file system.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	index *Index
	fsys  fs.FS
}

type cacheEntry struct {
	img    *image.NRGBA
	loaded bool // true if we've attempted to load (img may still be nil)
}

// NewCache creates a texture cache backed by the given index and file system.
func NewCache(fsys fs.FS, index *Index) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		index: index,
		fsys:  fsys,
	}
}

// Resolve loads and caches a texture by name. Returns nil if not found or
// if decoding fails.
func (c *Cache) Resolve(texName string) *image.NRGBA {
	path, ok := c.index.ResolvePath(texName)
	if !ok {
		return nil
	}

	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.img
	}
	c.mu.RUnlock()

	img, err := LoadTextureFS(c.fsys, path)
	if err != nil {
		logger.L().Warn("texture load failed", "path", path, "err", err)
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[path]; exists {
		return entry.img
	}
	c.items[path] = &cacheEntry{img: img, loaded: true}
	return img
}

// Len returns the number of cached entries, including failed loads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
