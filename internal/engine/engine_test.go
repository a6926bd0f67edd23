package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/kbengine/pkg/types"
)

func setupEngine(t *testing.T) *Engine {
	e := New(Config{DataDir: t.TempDir()})
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func createVolatile(t *testing.T, e *Engine, id string, dimension int) {
	require.NoError(t, e.CreateContainer(context.Background(), &types.KnowledgeContainer{
		ID:        id,
		Name:      "container " + id,
		Dimension: dimension,
		Backend:   types.BackendVolatile,
	}))
}

func lambdaPtr(v float64) *float64 {
	return &v
}

func docChunk(id, docID, content string, embedding []float32) *types.DocumentChunk {
	return &types.DocumentChunk{
		ID:           id,
		DocumentID:   docID,
		DocumentName: docID + ".md",
		Content:      content,
		Embedding:    embedding,
	}
}

func TestCreateContainer(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	c := &types.KnowledgeContainer{
		Name:      "docs",
		Dimension: 4,
		Backend:   types.BackendVolatile,
	}
	require.NoError(t, e.CreateContainer(ctx, c))
	assert.NotEmpty(t, c.ID, "empty ID gets a generated UUID")

	got, err := e.GetContainer(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "docs", got.Name)

	err = e.CreateContainer(ctx, c)
	assert.Error(t, err, "duplicate ID is rejected")
}

func TestGetContainer_NotFound(t *testing.T) {
	e := setupEngine(t)
	_, err := e.GetContainer("missing")
	assert.ErrorIs(t, err, types.ErrContainerNotFound)
}

func TestListContainers_SortedByName(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()

	for _, name := range []string{"zebra", "apple", "mango"} {
		require.NoError(t, e.CreateContainer(ctx, &types.KnowledgeContainer{
			Name:      name,
			Dimension: 3,
			Backend:   types.BackendVolatile,
		}))
	}

	list := e.ListContainers()
	require.Len(t, list, 3)
	assert.Equal(t, "apple", list[0].Name)
	assert.Equal(t, "mango", list[1].Name)
	assert.Equal(t, "zebra", list[2].Name)
}

func TestDeleteContainer(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.DeleteContainer(ctx, "k1"))
	_, err := e.GetContainer("k1")
	assert.ErrorIs(t, err, types.ErrContainerNotFound)

	err = e.DeleteContainer(ctx, "k1")
	assert.ErrorIs(t, err, types.ErrContainerNotFound)
}

func TestIngestAndCount(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "first chunk", []float32{1, 0, 0}),
		docChunk("c2", "d1", "second chunk", []float32{0, 1, 0}),
	}))

	n, err := e.Count(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngest_UnknownContainer(t *testing.T) {
	e := setupEngine(t)
	err := e.Ingest(context.Background(), "missing", []*types.DocumentChunk{
		docChunk("c1", "d1", "text", []float32{1, 0, 0}),
	})
	assert.ErrorIs(t, err, types.ErrContainerNotFound)
}

func TestQuery_ReturnsRankedResults(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 4)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "retrieval pipelines and ranking", []float32{1, 0, 0, 0}),
		docChunk("c2", "d1", "cooking pasta at home", []float32{0, 1, 0, 0}),
		docChunk("c3", "d2", "ranking retrieval results", []float32{0.9, 0.1, 0, 0}),
	}))

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "retrieval ranking",
		Embedding:   []float32{1, 0, 0, 0},
		TopK:        2,
	})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Results, 2)

	// Both hits must be the retrieval chunks, ranked 1 and 2 with
	// descending scores.
	ids := []string{resp.Results[0].ChunkID, resp.Results[1].ChunkID}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.NotEmpty(t, resp.Results[0].Content)
	assert.NotEmpty(t, resp.Results[0].DocumentName)
}

func TestQuery_EmptyContainer(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "anything",
		Embedding:   []float32{1, 0, 0},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestQuery_UnknownContainer(t *testing.T) {
	e := setupEngine(t)
	_, err := e.Query(context.Background(), QueryRequest{
		ContainerID: "missing",
		Text:        "q",
		Embedding:   []float32{1, 0, 0},
	})
	assert.ErrorIs(t, err, types.ErrContainerNotFound)
}

func TestQuery_RepeatHitsCache(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "cached content", []float32{1, 0, 0}),
	}))

	req := QueryRequest{
		ContainerID: "k1",
		Text:        "cached content",
		Embedding:   []float32{1, 0, 0},
	}

	first, err := e.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.Query(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
}

func TestQuery_SimilarEmbeddingHitsCache(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "some content", []float32{1, 0, 0}),
	}))

	_, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "some content",
		Embedding:   []float32{1, 0, 0},
	})
	require.NoError(t, err)

	// A paraphrased query with a near-identical embedding reuses the
	// cached results.
	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "different words entirely",
		Embedding:   []float32{1, 0.05, 0},
	})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
}

func TestIngest_InvalidatesCache(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "original", []float32{1, 0, 0}),
	}))

	req := QueryRequest{ContainerID: "k1", Text: "original", Embedding: []float32{1, 0, 0}}
	_, err := e.Query(ctx, req)
	require.NoError(t, err)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c2", "d2", "original addition", []float32{1, 0.01, 0}),
	}))

	resp, err := e.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit, "mutation must purge cached results")
	assert.Len(t, resp.Results, 2)
}

func TestDeleteDocument(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "doc-a", "alpha text", []float32{1, 0, 0}),
		docChunk("c2", "doc-a", "alpha more", []float32{0.9, 0.1, 0}),
		docChunk("c3", "doc-b", "beta text", []float32{0, 1, 0}),
	}))

	removed, err := e.DeleteDocument(ctx, "k1", "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "alpha text",
		Embedding:   []float32{1, 0, 0},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c3", resp.Results[0].ChunkID)
}

func TestClearContainer(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "text", []float32{1, 0, 0}),
	}))
	require.NoError(t, e.ClearContainer(ctx, "k1"))

	n, err := e.Count(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "text",
		Embedding:   []float32{1, 0, 0},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestQuery_IsolatedBetweenContainers(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)
	createVolatile(t, e, "k2", 3)

	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "only in k1", []float32{1, 0, 0}),
	}))

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k2",
		Text:        "only in k1",
		Embedding:   []float32{1, 0, 0},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestQuery_MMRDiversifiesDuplicates(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	// Two near-identical chunks plus one distinct. With aggressive
	// diversification the distinct chunk takes the second slot.
	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("dup1", "d1", "identical sentence", []float32{1, 0, 0}),
		docChunk("dup2", "d1", "identical sentence", []float32{1, 0, 0}),
		docChunk("other", "d2", "something else", []float32{0, 1, 0}),
	}))

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "identical sentence",
		Embedding:   []float32{1, 0, 0},
		TopK:        2,
		MMRLambda:   lambdaPtr(0.3),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "other", resp.Results[1].ChunkID)
}

func TestQuery_ZeroLambdaIsHonored(t *testing.T) {
	ingestDuplicates := func(t *testing.T, e *Engine) {
		require.NoError(t, e.Ingest(context.Background(), "k1", []*types.DocumentChunk{
			docChunk("dup1", "d1", "identical sentence", []float32{1, 0, 0}),
			docChunk("dup2", "d1", "identical sentence", []float32{1, 0, 0}),
			docChunk("other", "d2", "something else", []float32{0, 1, 0}),
		}))
	}

	// Lambda zero is pure diversity, not "fall back to the default".
	t.Run("per request", func(t *testing.T) {
		e := setupEngine(t)
		createVolatile(t, e, "k1", 3)
		ingestDuplicates(t, e)

		resp, err := e.Query(context.Background(), QueryRequest{
			ContainerID: "k1",
			Text:        "identical sentence",
			Embedding:   []float32{1, 0, 0},
			TopK:        2,
			MMRLambda:   lambdaPtr(0),
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "other", resp.Results[1].ChunkID)
	})

	t.Run("engine wide", func(t *testing.T) {
		e := New(Config{DataDir: t.TempDir(), MMRLambda: lambdaPtr(0)})
		t.Cleanup(func() { _ = e.Close() })
		createVolatile(t, e, "k1", 3)
		ingestDuplicates(t, e)

		resp, err := e.Query(context.Background(), QueryRequest{
			ContainerID: "k1",
			Text:        "identical sentence",
			Embedding:   []float32{1, 0, 0},
			TopK:        2,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "other", resp.Results[1].ChunkID)
	})
}

func TestQuery_TopKBounds(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	chunks := make([]*types.DocumentChunk, 15)
	for i := range chunks {
		chunks[i] = docChunk(
			fmt.Sprintf("c%d", i),
			"d1",
			fmt.Sprintf("chunk number %d", i),
			[]float32{1, float32(i) * 0.01, 0},
		)
	}
	require.NoError(t, e.Ingest(ctx, "k1", chunks))

	resp, err := e.Query(ctx, QueryRequest{
		ContainerID: "k1",
		Text:        "chunk number",
		Embedding:   []float32{1, 0, 0},
		TopK:        0, // falls back to the default
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultTopK)
}

// TestConcurrentIngestQuery exercises the per-container lock discipline:
// ingest holds the write lock across the store upsert, the lexical update,
// and the cache purge, so a concurrent query must never observe a partial
// batch or a stale cached result set.
func TestConcurrentIngestQuery(t *testing.T) {
	const (
		ingesters = 4
		batches   = 5
		batchSize = 10
	)

	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)

	done := make(chan struct{})
	var writers sync.WaitGroup

	for w := 0; w < ingesters; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for b := 0; b < batches; b++ {
				chunks := make([]*types.DocumentChunk, batchSize)
				for i := range chunks {
					chunks[i] = docChunk(
						fmt.Sprintf("w%d-b%d-c%d", w, b, i),
						fmt.Sprintf("doc-%d", w),
						fmt.Sprintf("writer %d batch %d chunk %d", w, b, i),
						[]float32{1, float32(w), float32(i)},
					)
				}
				assert.NoError(t, e.Ingest(ctx, "k1", chunks))
			}
		}(w)
	}

	var queriers sync.WaitGroup
	for q := 0; q < 4; q++ {
		queriers.Add(1)
		go func() {
			defer queriers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				n, err := e.Count(ctx, "k1")
				assert.NoError(t, err)
				assert.Zero(t, n%batchSize, "query side observed a partial batch")

				resp, err := e.Query(ctx, QueryRequest{
					ContainerID: "k1",
					Text:        "writer batch chunk",
					Embedding:   []float32{1, 0, 0},
					TopK:        5,
				})
				assert.NoError(t, err)
				for _, r := range resp.Results {
					assert.NotEmpty(t, r.Content)
				}
			}
		}()
	}

	writers.Wait()
	close(done)
	queriers.Wait()

	n, err := e.Count(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, ingesters*batches*batchSize, n)
}

func TestReset(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	createVolatile(t, e, "k1", 3)
	require.NoError(t, e.Ingest(ctx, "k1", []*types.DocumentChunk{
		docChunk("c1", "d1", "text", []float32{1, 0, 0}),
	}))

	require.NoError(t, e.Reset())
	assert.Empty(t, e.ListContainers())
	_, err := e.GetContainer("k1")
	assert.ErrorIs(t, err, types.ErrContainerNotFound)
}
