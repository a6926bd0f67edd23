// Package embedder defines the embedding provider interface consumed by the
// retrieval engine and supplies two implementations: an OpenAI-compatible
// HTTP provider and a deterministic local provider for offline use and tests.
//
// The engine itself never generates embeddings; it only validates and stores
// the vectors providers return. Provider selection happens once at
// construction, not at runtime.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragforge/kbengine/pkg/types"
)

// Provider generates embedding vectors for free text.
type Provider interface {
	// Available reports whether the provider is ready to serve requests.
	Available(ctx context.Context) bool

	// Dimension returns the provider's embedding dimension.
	Dimension() int

	// Embed generates a single embedding. Blank text fails with
	// types.ErrEmptyInput; an unreachable model with types.ErrModelUnavailable.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only possible with a non-positive size, which is normalized above
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached embedding.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Set stores an embedding with automatic LRU eviction.
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, append([]float32(nil), vector...))
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 hash of text for caching.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateTexts rejects empty inputs before they reach a provider call.
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return types.ErrEmptyInput
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("text at index %d: %w", i, types.ErrEmptyInput)
		}
	}
	return nil
}
