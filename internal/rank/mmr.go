package rank

import (
	"github.com/ragforge/kbengine/internal/vectormath"
)

// DefaultMMRLambda balances relevance against diversity. 1 is pure
// relevance order, 0 is maximum diversity.
const DefaultMMRLambda = 0.7

// Item is a diversification candidate: a fused relevance score plus the
// chunk's embedding for pairwise similarity checks.
type Item struct {
	ChunkID   string
	Relevance float64
	Embedding []float32
	Norm      float64
}

// scored carries an item with its relevance rescaled to [0,1]. Raw fused
// scores live on a reciprocal-rank scale far below cosine similarities;
// without rescaling the similarity penalty would swamp relevance at any
// lambda.
type scored struct {
	item Item
	rel  float64
}

// Diversify greedily selects up to k items maximizing
//
//	lambda*relevance - (1-lambda)*maxSim(item, selected)
//
// where relevance is the item's fused score min-max normalized across the
// candidate pool and maxSim is cosine similarity against the embeddings
// already chosen. Ties go to the higher-relevance item. Items must be
// pre-sorted by relevance descending; the slice is not modified. Fewer than
// k items are returned without error when the pool is smaller.
func Diversify(items []Item, k int, lambda float64) []Item {
	if k <= 0 || len(items) == 0 {
		return []Item{}
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	if k > len(items) {
		k = len(items)
	}

	remaining := normalize(items)

	selected := make([]scored, 0, k)

	// Highest relevance always wins the first slot.
	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda)

		// Strict > keeps the earlier (higher relevance) item on ties.
		for i := 1; i < len(remaining); i++ {
			if score := mmrScore(remaining[i], selected, lambda); score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	out := make([]Item, len(selected))
	for i, s := range selected {
		out[i] = s.item
	}
	return out
}

// normalize min-max rescales relevance over the pool. A pool with no spread
// gets uniform relevance 1 so lambda weighting degrades to pure diversity
// order among equals.
func normalize(items []Item) []scored {
	minRel, maxRel := items[0].Relevance, items[0].Relevance
	for _, it := range items[1:] {
		if it.Relevance < minRel {
			minRel = it.Relevance
		}
		if it.Relevance > maxRel {
			maxRel = it.Relevance
		}
	}
	spread := maxRel - minRel

	out := make([]scored, len(items))
	for i, it := range items {
		rel := 1.0
		if spread > 0 {
			rel = (it.Relevance - minRel) / spread
		}
		out[i] = scored{item: it, rel: rel}
	}
	return out
}

func mmrScore(candidate scored, selected []scored, lambda float64) float64 {
	maxSim := 0.0
	for _, s := range selected {
		sim := vectormath.CosineWithNorms(candidate.item.Embedding, s.item.Embedding, candidate.item.Norm, s.item.Norm)
		if sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*candidate.rel - (1-lambda)*maxSim
}
