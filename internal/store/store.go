package store

import (
	"context"
	"errors"

	"github.com/ragforge/kbengine/pkg/types"
)

var (
	// ErrNotFound is returned when a requested chunk doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned for operations on a closed store
	ErrClosed = errors.New("store is closed")
)

// VectorResult pairs a chunk ID with its cosine similarity to a query.
type VectorResult struct {
	ChunkID string
	Score   float64
}

// Store defines the per-container chunk storage interface. Implementations
// serialize their own mutations against their own reads: a batch upsert is
// never partially visible to a concurrent search.
type Store interface {
	// Upsert inserts or replaces chunks by ID. Each chunk's embedding norm is
	// computed and cached at write time. Validation failures (dimension, NaN,
	// Inf) reject the whole batch and leave the store unchanged.
	Upsert(ctx context.Context, chunks []*types.DocumentChunk) error

	// Search returns up to topK chunks ranked by cosine similarity descending,
	// ties broken by insertion order. An empty store yields an empty result.
	Search(ctx context.Context, query []float32, topK int) ([]VectorResult, error)

	// Get returns a copy of the chunk with the given ID.
	Get(ctx context.Context, chunkID string) (*types.DocumentChunk, error)

	// List returns copies of all chunks in insertion order.
	List(ctx context.Context) ([]*types.DocumentChunk, error)

	// DeleteByDocument removes all chunks belonging to a document and returns
	// the IDs of the removed chunks.
	DeleteByDocument(ctx context.Context, documentID string) ([]string, error)

	// Clear removes all chunks.
	Clear(ctx context.Context) error

	// Count returns the current chunk count.
	Count() int

	// Dimension returns the configured embedding dimension.
	Dimension() int

	// Close releases any resources held by the store.
	Close() error
}
