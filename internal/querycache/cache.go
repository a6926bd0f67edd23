// Package querycache provides a similarity-keyed cache of recent query
// results. Unlike an exact-match cache, a lookup compares the incoming query
// embedding against every cached entry's embedding; a cosine similarity above
// the configured threshold counts as a hit and short-circuits ranking
// entirely.
package querycache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragforge/kbengine/internal/vectormath"
	"github.com/ragforge/kbengine/pkg/types"
)

// Defaults. Configurable at construction; the literal values are reasonable,
// not load-bearing.
const (
	DefaultCapacity            = 20
	DefaultTTL                 = 300 * time.Second
	DefaultSimilarityThreshold = 0.95
)

// entry is a cached result set with its originating query embedding.
type entry struct {
	embedding []float32
	norm      float64
	results   []types.RetrievedChunk
	createdAt time.Time
}

// Config controls cache behavior.
type Config struct {
	Capacity            int
	TTL                 time.Duration
	SimilarityThreshold float64
}

// DefaultConfig returns the standard cache configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:            DefaultCapacity,
		TTL:                 DefaultTTL,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Cache is a fixed-capacity LRU of recent query result sets with lazy
// time-based expiry. The owning container purges it on every mutation, so a
// hit is always consistent with the current chunk set.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, *entry]
	ttl       time.Duration
	threshold float64

	now func() time.Time // overridable in tests
}

// New creates a cache, filling zero config fields with defaults.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}

	backing, err := lru.New[string, *entry](cfg.Capacity)
	if err != nil {
		// Only possible with a non-positive size, which is normalized above
		panic(err)
	}

	return &Cache{
		lru:       backing,
		ttl:       cfg.TTL,
		threshold: cfg.SimilarityThreshold,
		now:       time.Now,
	}
}

// Lookup scans cached entries for one whose query embedding is within the
// similarity threshold of the given embedding. Expired entries encountered
// during the sweep are evicted. On a hit the entry's recency is refreshed and
// a copy of its result list is returned.
func (c *Cache) Lookup(embedding []float32) ([]types.RetrievedChunk, bool) {
	queryNorm := vectormath.Norm(embedding)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		bestKey string
		bestSim float64
		found   bool
		expired []string
	)

	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}

		if now.Sub(e.createdAt) > c.ttl {
			expired = append(expired, key)
			continue
		}

		sim := vectormath.CosineWithNorms(embedding, e.embedding, queryNorm, e.norm)
		if sim >= c.threshold && (!found || sim > bestSim) {
			bestKey = key
			bestSim = sim
			found = true
		}
	}

	for _, key := range expired {
		c.lru.Remove(key)
	}

	if !found {
		return nil, false
	}

	// Get rather than Peek so the hit counts as a use for LRU ordering
	e, ok := c.lru.Get(bestKey)
	if !ok {
		return nil, false
	}
	return copyResults(e.results), true
}

// Store caches a result set for the given query embedding. An existing entry
// within the similarity threshold is replaced in place rather than
// duplicated, so repeat queries cannot crowd out unrelated entries. The LRU
// backing evicts the least-recently-used entry on overflow.
func (c *Cache) Store(embedding []float32, results []types.RetrievedChunk) {
	e := &entry{
		embedding: append([]float32(nil), embedding...),
		norm:      vectormath.Norm(embedding),
		results:   copyResults(results),
		createdAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		old, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if vectormath.CosineWithNorms(embedding, old.embedding, e.norm, old.norm) >= c.threshold {
			c.lru.Add(key, e)
			return
		}
	}

	c.lru.Add(uuid.NewString(), e)
}

// Purge removes all entries. Called unconditionally on every mutation of the
// owning chunk store: correctness over cache efficiency.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of cached entries, including any not yet swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func copyResults(in []types.RetrievedChunk) []types.RetrievedChunk {
	out := make([]types.RetrievedChunk, len(in))
	copy(out, in)
	return out
}
