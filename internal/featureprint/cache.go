package featureprint

import "sync"

// VectorCache is a bounded in-memory cache of extracted feature vectors.
// Keys combine the asset UID with a content-change signal (file hash) so a
// re-edited photo misses the cache and gets re-extracted. When full, the
// oldest entry is evicted.
type VectorCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*FeatureVector
	order    []string // insertion order, oldest first
}

// NewVectorCache creates a cache holding at most capacity vectors.
func NewVectorCache(capacity int) *VectorCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &VectorCache{
		capacity: capacity,
		entries:  make(map[string]*FeatureVector, capacity),
	}
}

// CacheKey builds the cache key for an asset and its content signal.
func CacheKey(assetUID, contentHash string) string {
	return assetUID + ":" + contentHash
}

// Get returns the cached vector for key, or nil when absent.
func (c *VectorCache) Get(key string) *FeatureVector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Put stores a vector under key, evicting the oldest entry when full.
func (c *VectorCache) Put(key string, v *FeatureVector) {
	if v == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = v
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = v
	c.order = append(c.order, key)
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
