// Package lexical provides an in-memory BM25 inverted index over chunk text,
// supporting keyword search alongside the vector store.
package lexical

import (
	"math"
	"sort"
	"sync"
)

// BM25 parameters. Standard values, configurable at construction.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Result pairs a chunk ID with its BM25 score for a query.
type Result struct {
	ChunkID string
	Score   float64
}

// Index maintains per-chunk term frequencies and corpus-wide document
// frequencies for BM25 scoring. It is rebuilt incrementally: chunks are added
// on ingest and removed on delete.
type Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	postings map[string]map[string]int // term -> chunk ID -> term frequency
	docLen   map[string]int            // chunk ID -> token count
	order    map[string]int64          // chunk ID -> insertion sequence
	seq      int64
	totalLen int
}

// NewIndex creates an empty BM25 index with standard parameters.
func NewIndex() *Index {
	return &Index{
		k1:       DefaultK1,
		b:        DefaultB,
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		order:    make(map[string]int64),
	}
}

// Add indexes a chunk's text. Adding an existing chunk ID replaces its
// previous entry.
func (ix *Index) Add(chunkID, text string) {
	tokens := Tokenize(text)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.docLen[chunkID]; ok {
		ix.removeLocked(chunkID)
	}

	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}

	for term, tf := range freqs {
		posting, ok := ix.postings[term]
		if !ok {
			posting = make(map[string]int)
			ix.postings[term] = posting
		}
		posting[chunkID] = tf
	}

	ix.docLen[chunkID] = len(tokens)
	ix.totalLen += len(tokens)
	ix.seq++
	ix.order[chunkID] = ix.seq
}

// Remove deletes a chunk from the index. Unknown IDs are ignored.
func (ix *Index) Remove(chunkID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(chunkID)
}

func (ix *Index) removeLocked(chunkID string) {
	length, ok := ix.docLen[chunkID]
	if !ok {
		return
	}

	for term, posting := range ix.postings {
		if _, ok := posting[chunkID]; ok {
			delete(posting, chunkID)
			if len(posting) == 0 {
				delete(ix.postings, term)
			}
		}
	}

	delete(ix.docLen, chunkID)
	delete(ix.order, chunkID)
	ix.totalLen -= length
}

// Reset empties the index.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.postings = make(map[string]map[string]int)
	ix.docLen = make(map[string]int)
	ix.order = make(map[string]int64)
	ix.totalLen = 0
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLen)
}

// Search scores the query's token set against every chunk sharing at least
// one term and returns the topN results by BM25 score descending, ties broken
// by insertion order. Chunks with zero term overlap are absent from the
// result, not scored as zero.
func (ix *Index) Search(query string, topN int) []Result {
	tokens := Tokenize(query)
	if len(tokens) == 0 || topN <= 0 {
		return []Result{}
	}

	// Deduplicate query terms
	terms := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		terms[tok] = struct{}{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docLen)
	if n == 0 {
		return []Result{}
	}
	avgLen := float64(ix.totalLen) / float64(n)

	scores := make(map[string]float64)
	for term := range terms {
		posting, ok := ix.postings[term]
		if !ok {
			continue
		}

		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))

		for chunkID, tf := range posting {
			dl := float64(ix.docLen[chunkID])
			freq := float64(tf)
			scores[chunkID] += idf * (freq * (ix.k1 + 1)) / (freq + ix.k1*(1-ix.b+ix.b*dl/avgLen))
		}
	}

	results := make([]Result, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, Result{ChunkID: chunkID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return ix.order[results[i].ChunkID] < ix.order[results[j].ChunkID]
	})

	if topN < len(results) {
		results = results[:topN]
	}
	return results
}
