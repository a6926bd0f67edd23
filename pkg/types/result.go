package types

import "errors"

// Domain errors for result validation
var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrMissingChunk = errors.New("retrieved chunk must reference a chunk")
)

// RetrievedChunk pairs a DocumentChunk with its similarity score and rank
// position in a result set. It is a read-only projection built at query time
// and never persisted.
type RetrievedChunk struct {
	// Identification
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Scoring
	Score float64 // Cosine similarity or fused relevance, depending on stage

	// Content
	Content string

	// Denormalized citation fields
	DocumentID   string
	DocumentName string
	Page         int
	Section      string
}

// Validate checks if the retrieved chunk is well formed.
func (r *RetrievedChunk) Validate() error {
	if r.ChunkID == "" {
		return ErrMissingChunk
	}

	if r.Rank < 1 {
		return ErrInvalidRank
	}

	return nil
}
