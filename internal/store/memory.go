package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ragforge/kbengine/internal/vectormath"
	"github.com/ragforge/kbengine/pkg/types"
)

// MemoryStore is a volatile in-memory chunk store using exact linear-scan
// cosine similarity. Chunks are held in insertion order; replacing an
// existing ID keeps its position so similarity ties stay stable across
// re-ingestion.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []*types.DocumentChunk
	index     map[string]int // chunk ID -> position in chunks
}

// NewMemoryStore creates an empty volatile store for the given embedding
// dimension.
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &MemoryStore{
		dimension: dimension,
		index:     make(map[string]int),
	}, nil
}

// Upsert inserts or replaces chunks by ID. The whole batch is validated
// before any state changes, so a failed batch leaves the store untouched.
func (m *MemoryStore) Upsert(ctx context.Context, chunks []*types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, c := range chunks {
		if err := c.Validate(m.dimension); err != nil {
			return fmt.Errorf("chunk %d (%s): %w", i, c.ID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		stored := c.Clone()
		stored.Norm = vectormath.Norm(stored.Embedding)

		if pos, ok := m.index[stored.ID]; ok {
			m.chunks[pos] = stored
			continue
		}
		m.index[stored.ID] = len(m.chunks)
		m.chunks = append(m.chunks, stored)
	}

	return nil
}

// Search performs an exact linear scan over all chunks using precomputed
// norms, returning the topK most similar chunks in descending order.
func (m *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]VectorResult, error) {
	if err := vectormath.Validate(query, m.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []VectorResult{}, nil
	}

	queryNorm := vectormath.Norm(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]VectorResult, 0, len(m.chunks))
	for _, c := range m.chunks {
		results = append(results, VectorResult{
			ChunkID: c.ID,
			Score:   vectormath.CosineWithNorms(query, c.Embedding, queryNorm, c.Norm),
		})
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Get returns a copy of the chunk with the given ID.
func (m *MemoryStore) Get(ctx context.Context, chunkID string) (*types.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.index[chunkID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.chunks[pos].Clone(), nil
}

// List returns copies of all chunks in insertion order.
func (m *MemoryStore) List(ctx context.Context) ([]*types.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.DocumentChunk, len(m.chunks))
	for i, c := range m.chunks {
		out[i] = c.Clone()
	}
	return out, nil
}

// DeleteByDocument removes all chunks belonging to the given document and
// returns their IDs.
func (m *MemoryStore) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.chunks[:0]
	var removed []string
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			removed = append(removed, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	m.chunks = kept

	// Rebuild positions after compaction
	m.index = make(map[string]int, len(m.chunks))
	for i, c := range m.chunks {
		m.index[c.ID] = i
	}

	return removed, nil
}

// Clear removes all chunks.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = nil
	m.index = make(map[string]int)
	return nil
}

// Count returns the current chunk count.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Dimension returns the configured embedding dimension.
func (m *MemoryStore) Dimension() int {
	return m.dimension
}

// Close is a no-op for the volatile store.
func (m *MemoryStore) Close() error {
	return nil
}
