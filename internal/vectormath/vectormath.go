// Package vectormath provides the embedding-vector primitives used by the
// retrieval engine: norm computation, cosine similarity, and validation.
package vectormath

import (
	"math"

	"github.com/ragforge/kbengine/pkg/types"
)

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Dot computes the dot product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms computes cosine similarity using precomputed norms,
// avoiding the sqrt in the inner loop of a linear scan. Callers must ensure
// the norms correspond to the given vectors.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

// Validate checks that a vector has the expected dimension and contains only
// finite components. It is the single validation path for embeddings entering
// the store or arriving as queries.
func Validate(v []float32, dimension int) error {
	if len(v) != dimension {
		return types.ErrInvalidDimension
	}

	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) {
			return types.ErrContainsNaN
		}
		if math.IsInf(f, 0) {
			return types.ErrContainsInf
		}
	}

	return nil
}
