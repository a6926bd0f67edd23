package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/kbengine/internal/vectormath"
)

func mmrItem(id string, relevance float64, embedding []float32) Item {
	return Item{
		ChunkID:   id,
		Relevance: relevance,
		Embedding: embedding,
		Norm:      vectormath.Norm(embedding),
	}
}

func TestDiversify_LambdaOnePreservesRelevanceOrder(t *testing.T) {
	items := []Item{
		mmrItem("c1", 0.9, []float32{1, 0, 0}),
		mmrItem("c2", 0.8, []float32{1, 0, 0}), // duplicate of c1
		mmrItem("c3", 0.7, []float32{0, 1, 0}),
	}

	out := Diversify(items, 3, 1.0)
	require.Len(t, out, 3)
	assert.Equal(t, "c1", out[0].ChunkID)
	assert.Equal(t, "c2", out[1].ChunkID)
	assert.Equal(t, "c3", out[2].ChunkID)
}

func TestDiversify_LowLambdaSkipsNearDuplicate(t *testing.T) {
	items := []Item{
		mmrItem("c1", 0.9, []float32{1, 0, 0}),
		mmrItem("dup", 0.85, []float32{1, 0, 0}),
		mmrItem("c3", 0.5, []float32{0, 1, 0}),
	}

	out := Diversify(items, 2, 0.3)
	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ChunkID)
	assert.Equal(t, "c3", out[1].ChunkID)
}

func TestDiversify_FirstSlotAlwaysTopRelevance(t *testing.T) {
	items := []Item{
		mmrItem("top", 0.95, []float32{1, 0, 0}),
		mmrItem("other", 0.1, []float32{0, 1, 0}),
	}

	out := Diversify(items, 2, 0.0)
	require.Len(t, out, 2)
	assert.Equal(t, "top", out[0].ChunkID)
}

func TestDiversify_TiesKeepHigherRelevance(t *testing.T) {
	// Both candidates are orthogonal to the selected item and carry equal
	// relevance, so their MMR scores tie; the earlier (pre-sorted) one
	// must win the slot.
	items := []Item{
		mmrItem("first", 0.9, []float32{1, 0, 0}),
		mmrItem("second", 0.5, []float32{0, 1, 0}),
		mmrItem("third", 0.5, []float32{0, 0, 1}),
	}

	out := Diversify(items, 2, 0.7)
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[1].ChunkID)
}

func TestDiversify_BoundsAndClamping(t *testing.T) {
	items := []Item{
		mmrItem("c1", 0.9, []float32{1, 0}),
		mmrItem("c2", 0.8, []float32{0, 1}),
	}

	assert.Empty(t, Diversify(nil, 3, 0.7))
	assert.Empty(t, Diversify(items, 0, 0.7))
	assert.Len(t, Diversify(items, 10, 0.7), 2)

	// Out-of-range lambda is clamped, not rejected
	assert.Len(t, Diversify(items, 2, -1), 2)
	assert.Len(t, Diversify(items, 2, 2), 2)
}

func TestDiversify_DoesNotMutateInput(t *testing.T) {
	items := []Item{
		mmrItem("c1", 0.9, []float32{1, 0, 0}),
		mmrItem("c2", 0.85, []float32{1, 0, 0}),
		mmrItem("c3", 0.5, []float32{0, 1, 0}),
	}

	_ = Diversify(items, 3, 0.2)
	assert.Equal(t, "c1", items[0].ChunkID)
	assert.Equal(t, "c2", items[1].ChunkID)
	assert.Equal(t, "c3", items[2].ChunkID)
}
