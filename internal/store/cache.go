package store

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/veridica/internal/model"
)

// CachedChunks is a read-through cache over the chunk table. Chunks are
// immutable once ingested, so entries never need invalidation; the TTL
// only bounds memory.
type CachedChunks struct {
	store *Store
	cache *gocache.Cache
}

// NewCachedChunks wraps a store with an in-memory chunk cache.
func NewCachedChunks(s *Store, ttl time.Duration) *CachedChunks {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedChunks{
		store: s,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get resolves a chunk id, consulting the cache first.
func (c *CachedChunks) Get(projectID, chunkID string) (model.Chunk, error) {
	key := projectID + ":" + chunkID
	if val, found := c.cache.Get(key); found {
		return val.(model.Chunk), nil
	}
	chunk, err := c.store.GetChunk(projectID, chunkID)
	if err != nil {
		return model.Chunk{}, err
	}
	c.cache.Set(key, chunk, gocache.DefaultExpiration)
	return chunk, nil
}

// Exists reports whether a chunk id resolves within a project.
func (c *CachedChunks) Exists(projectID, chunkID string) (bool, error) {
	key := projectID + ":" + chunkID
	if _, found := c.cache.Get(key); found {
		return true, nil
	}
	return c.store.ChunkExists(projectID, chunkID)
}
