package artifact

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/trellis-ml/trellis/trellis-golib/lazy"
	"github.com/trellis-ml/trellis/trellis-golib/status"
)

// DefaultCacheSize is the number of distinct artifacts kept resident per
// serving node.
const DefaultCacheSize = 16

var cacheSection = status.NewSection("artifact_cache")

type cacheEntry struct {
	uri    string
	loader *lazy.Loader
	art    *Artifact
}

// Cache keeps recently served artifacts resident, loading each uri once and
// evicting least-recently-used entries. The release func returned by Get
// pins the artifact against unloading until called.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache

	hits *status.Ratio
}

// NewCache returns a cache holding up to size artifacts.
func NewCache(size int) (*Cache, error) {
	if size < 1 {
		size = DefaultCacheSize
	}

	inner, err := lru.NewWithEvict(size, func(key, value interface{}) {
		value.(*cacheEntry).loader.Unload()
	})
	if err != nil {
		return nil, err
	}
	return &Cache{lru: inner, hits: cacheSection.Ratio("hits")}, nil
}

// Get loads the artifact at uri, or returns the resident copy. Callers must
// invoke release once they are done predicting with it.
func (c *Cache) Get(uri string) (art *Artifact, release func(), err error) {
	c.mu.Lock()
	var e *cacheEntry
	if v, ok := c.lru.Get(uri); ok {
		e = v.(*cacheEntry)
	} else {
		e = &cacheEntry{uri: uri}
		e.loader = lazy.NewLoader(
			func() error {
				loaded, err := Load(e.uri)
				if err != nil {
					return err
				}
				e.art = loaded
				return nil
			},
			func() { e.art = nil },
		)
		c.lru.Add(uri, e)
	}
	c.mu.Unlock()

	if e.loader.Loaded() {
		c.hits.Hit()
	} else {
		c.hits.Miss()
	}

	if err := e.loader.LoadAndLock(); err != nil {
		return nil, nil, err
	}
	return e.art, e.loader.Unlock, nil
}

// Evict drops the artifact at uri from the cache, unloading it once no
// caller holds it.
func (c *Cache) Evict(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(uri)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
