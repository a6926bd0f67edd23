// Package rank implements hybrid result ranking: Reciprocal Rank Fusion of
// vector and lexical candidate lists, followed by Maximal Marginal Relevance
// diversification.
package rank

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ragforge/kbengine/internal/lexical"
	"github.com/ragforge/kbengine/internal/store"
)

// Defaults for fusion parameters. Reasonable values, not tuned constants.
const (
	DefaultRRFConstant         = 60
	DefaultCandidateMultiplier = 5
	DefaultMinCandidates       = 50
)

// Config controls candidate gathering and fusion.
type Config struct {
	// RRFConstant is the k in 1/(k+rank), damping the influence of rank
	// position.
	RRFConstant float64

	// CandidateMultiplier scales the requested topK to decide how many
	// candidates each source contributes to fusion.
	CandidateMultiplier int

	// MinCandidates is a floor on the per-source candidate count so small
	// topK values still give fusion enough material.
	MinCandidates int
}

// DefaultConfig returns the standard fusion configuration.
func DefaultConfig() Config {
	return Config{
		RRFConstant:         DefaultRRFConstant,
		CandidateMultiplier: DefaultCandidateMultiplier,
		MinCandidates:       DefaultMinCandidates,
	}
}

// Candidate is a fused search candidate.
type Candidate struct {
	ChunkID string
	Fused   float64 // RRF score across lists
	Vector  float64 // cosine similarity; 0 if absent from the vector list

	// seen orders candidates deterministically when both fused score and
	// vector similarity tie: vector list first, in list order.
	seen int
}

// Ranker fuses vector-similarity and lexical rankings.
type Ranker struct {
	cfg Config
}

// New creates a Ranker, filling zero config fields with defaults.
func New(cfg Config) *Ranker {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = DefaultMinCandidates
	}
	return &Ranker{cfg: cfg}
}

// CandidateCount returns the per-source candidate count for a requested topK.
func (r *Ranker) CandidateCount(topK int) int {
	n := topK * r.cfg.CandidateMultiplier
	if n < r.cfg.MinCandidates {
		n = r.cfg.MinCandidates
	}
	return n
}

// Rank gathers the top-N vector and lexical candidates concurrently and fuses
// them with Reciprocal Rank Fusion. The returned list is ordered by fused
// score descending (ties by vector similarity, then first appearance) and is
// deliberately larger than any final topK so the diversifier has room to
// trade relevance for variety.
func (r *Ranker) Rank(ctx context.Context, st store.Store, ix *lexical.Index, queryText string, queryEmbedding []float32, topK int) ([]Candidate, error) {
	n := r.CandidateCount(topK)

	var (
		vectorResults  []store.VectorResult
		lexicalResults []lexical.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorResults, err = st.Search(gctx, queryEmbedding, n)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lexicalResults = ix.Search(queryText, n)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.fuse(vectorResults, lexicalResults), nil
}

// fuse applies RRF: each chunk's fused score is the sum over lists containing
// it of 1/(k + rank). A chunk present in only one list still receives a
// nonzero score.
func (r *Ranker) fuse(vectorResults []store.VectorResult, lexicalResults []lexical.Result) []Candidate {
	k := r.cfg.RRFConstant

	byID := make(map[string]*Candidate)
	seen := 0

	for rank, vr := range vectorResults {
		c := &Candidate{ChunkID: vr.ChunkID, Vector: vr.Score, seen: seen}
		seen++
		c.Fused += 1.0 / (k + float64(rank+1))
		byID[vr.ChunkID] = c
	}

	for rank, lr := range lexicalResults {
		c, ok := byID[lr.ChunkID]
		if !ok {
			c = &Candidate{ChunkID: lr.ChunkID, seen: seen}
			seen++
			byID[lr.ChunkID] = c
		}
		c.Fused += 1.0 / (k + float64(rank+1))
	}

	fused := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Fused != fused[j].Fused {
			return fused[i].Fused > fused[j].Fused
		}
		if fused[i].Vector != fused[j].Vector {
			return fused[i].Vector > fused[j].Vector
		}
		return fused[i].seen < fused[j].seen
	})

	return fused
}
