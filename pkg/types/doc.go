// Package types provides shared type definitions for the retrieval engine.
//
// This package defines the domain model used across the engine's components:
// document chunks, knowledge containers, retrieved results, and the error
// taxonomy surfaced at validation boundaries.
//
// # Core Types
//
// DocumentChunk represents a bounded span of a source document's text together
// with its embedding vector and cached L2 norm:
//
//	chunk := &types.DocumentChunk{
//	    ID:           uuid.NewString(),
//	    DocumentID:   docID,
//	    DocumentName: "handbook.pdf",
//	    Ordinal:      3,
//	    Content:      text,
//	    Embedding:    vector,
//	}
//
// KnowledgeContainer is an isolated partition of chunks with its own embedding
// dimension and backend kind:
//
//	container := &types.KnowledgeContainer{
//	    ID:        uuid.NewString(),
//	    Name:      "engineering-docs",
//	    Dimension: 768,
//	    Backend:   types.BackendDurable,
//	}
//
// RetrievedChunk is a read-only projection of a chunk paired with its
// similarity score and rank position; it is never persisted.
//
// # Validation
//
// Domain types implement validation methods to ensure data integrity:
//
//	if err := chunk.Validate(dimension); err != nil {
//	    return err
//	}
//
// Validation failures are reported through the sentinel errors in errors.go
// (ErrInvalidDimension, ErrContainsNaN, ...) so callers can branch with
// errors.Is.
package types
