package types

import (
	"errors"
	"math"
)

// DocumentChunk represents a bounded span of a source document's text,
// embedded as a single vector for similarity search.
type DocumentChunk struct {
	// Identification
	ID           string
	DocumentID   string
	DocumentName string // Denormalized source-document name for citation

	// Position within the source document (0-based)
	Ordinal int

	// Content
	Content   string
	Embedding []float32

	// Norm is the cached L2 norm of Embedding. It is recomputed by the store
	// at write time and must never be trusted from input.
	Norm float64

	// Provenance metadata
	Page    int
	Section string
}

// Validate checks chunk integrity against the owning container's embedding
// dimension. The embedding is rejected if it is the wrong length or contains
// non-finite components.
func (c *DocumentChunk) Validate(dimension int) error {
	if c.ID == "" {
		return errors.New("chunk ID cannot be empty")
	}

	if c.DocumentID == "" {
		return errors.New("chunk document ID cannot be empty")
	}

	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.Ordinal < 0 {
		return errors.New("chunk ordinal must be non-negative")
	}

	if len(c.Embedding) != dimension {
		return ErrInvalidDimension
	}

	for _, v := range c.Embedding {
		f := float64(v)
		if math.IsNaN(f) {
			return ErrContainsNaN
		}
		if math.IsInf(f, 0) {
			return ErrContainsInf
		}
	}

	return nil
}

// Clone returns a deep copy of the chunk. The store hands out clones so
// callers cannot mutate indexed state.
func (c *DocumentChunk) Clone() *DocumentChunk {
	cp := *c
	cp.Embedding = make([]float32, len(c.Embedding))
	copy(cp.Embedding, c.Embedding)
	return &cp
}
