// Package engine exposes the retrieval engine's public operations: container
// management, chunk ingestion, and hybrid query answering. It owns the
// container registry and wires each container's store, lexical index, and
// query cache together through the router.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ragforge/kbengine/internal/querycache"
	"github.com/ragforge/kbengine/internal/rank"
	"github.com/ragforge/kbengine/internal/router"
	"github.com/ragforge/kbengine/internal/store"
	"github.com/ragforge/kbengine/pkg/types"
)

// Query limits, matching what the orchestrator is expected to request.
const (
	DefaultTopK = 10
	MaxTopK     = 100
)

// Config configures a new Engine.
type Config struct {
	// DataDir holds durable container files.
	DataDir string

	// Rank configures candidate gathering and RRF fusion.
	Rank rank.Config

	// Cache configures every container's query cache.
	Cache querycache.Config

	// MMRLambda is the diversification weight in [0,1]; nil means use the
	// default. Zero is a valid setting (pure diversity), so unset must be
	// distinguishable from zero.
	MMRLambda *float64
}

// Engine is the retrieval engine facade. All methods are safe for concurrent
// use.
type Engine struct {
	mu         sync.RWMutex
	containers map[string]*types.KnowledgeContainer

	router    *router.Router
	ranker    *rank.Ranker
	mmrLambda float64
}

// New creates an Engine.
func New(cfg Config) *Engine {
	lambda := rank.DefaultMMRLambda
	if cfg.MMRLambda != nil {
		lambda = *cfg.MMRLambda
	}

	return &Engine{
		containers: make(map[string]*types.KnowledgeContainer),
		router: router.New(router.Config{
			DataDir:     cfg.DataDir,
			CacheConfig: cfg.Cache,
		}),
		ranker:    rank.New(cfg.Rank),
		mmrLambda: lambda,
	}
}

// CreateContainer registers a knowledge container. An empty ID is assigned a
// fresh UUID. The container's backing stores are created lazily on first use.
func (e *Engine) CreateContainer(ctx context.Context, container *types.KnowledgeContainer) error {
	if container.ID == "" {
		container.ID = uuid.NewString()
	}
	if err := container.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.containers[container.ID]; ok {
		return fmt.Errorf("container %s already exists", container.ID)
	}
	cp := *container
	e.containers[container.ID] = &cp
	return nil
}

// GetContainer returns a copy of a registered container.
func (e *Engine) GetContainer(containerID string) (*types.KnowledgeContainer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.containers[containerID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", containerID, types.ErrContainerNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListContainers returns copies of all registered containers, ordered by name.
func (e *Engine) ListContainers() []*types.KnowledgeContainer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*types.KnowledgeContainer, 0, len(e.containers))
	for _, c := range e.containers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteContainer unregisters a container and tears down its stores,
// removing any durable file.
func (e *Engine) DeleteContainer(ctx context.Context, containerID string) error {
	e.mu.Lock()
	_, ok := e.containers[containerID]
	delete(e.containers, containerID)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", containerID, types.ErrContainerNotFound)
	}
	return e.router.Invalidate(containerID)
}

// resolve returns the handle for a registered container.
func (e *Engine) resolve(ctx context.Context, containerID string) (*router.Handle, error) {
	container, err := e.GetContainer(containerID)
	if err != nil {
		return nil, err
	}
	return e.router.Resolve(ctx, *container)
}

// Ingest inserts or replaces chunks in a container. The store upsert, the
// lexical index update, and the query-cache purge happen atomically under the
// container's write lock, so a concurrent query never sees a half-applied
// batch or a stale cached result.
func (e *Engine) Ingest(ctx context.Context, containerID string, chunks []*types.DocumentChunk) error {
	h, err := e.resolve(ctx, containerID)
	if err != nil {
		return err
	}

	// Mutations run to completion even if the caller abandons the request.
	ctx = context.WithoutCancel(ctx)

	h.Lock()
	defer h.Unlock()

	if err := h.Store.Upsert(ctx, chunks); err != nil {
		return err
	}
	for _, c := range chunks {
		h.Lexical.Add(c.ID, c.Content)
	}
	h.Cache.Purge()
	return nil
}

// DeleteDocument removes all chunks belonging to a document and returns the
// number removed.
func (e *Engine) DeleteDocument(ctx context.Context, containerID, documentID string) (int, error) {
	h, err := e.resolve(ctx, containerID)
	if err != nil {
		return 0, err
	}

	ctx = context.WithoutCancel(ctx)

	h.Lock()
	defer h.Unlock()

	removed, err := h.Store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	for _, chunkID := range removed {
		h.Lexical.Remove(chunkID)
	}
	h.Cache.Purge()
	return len(removed), nil
}

// ClearContainer removes all chunks from a container.
func (e *Engine) ClearContainer(ctx context.Context, containerID string) error {
	h, err := e.resolve(ctx, containerID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	h.Lock()
	defer h.Unlock()

	if err := h.Store.Clear(ctx); err != nil {
		return err
	}
	h.Lexical.Reset()
	h.Cache.Purge()
	return nil
}

// Count returns the current chunk count of a container.
func (e *Engine) Count(ctx context.Context, containerID string) (int, error) {
	h, err := e.resolve(ctx, containerID)
	if err != nil {
		return 0, err
	}

	h.RLock()
	defer h.RUnlock()
	return h.Store.Count(), nil
}

// QueryRequest contains parameters for a hybrid query.
type QueryRequest struct {
	ContainerID string
	Text        string    // Original query text, used for lexical scoring
	Embedding   []float32 // Query embedding, used for vector scoring
	TopK        int
	MMRLambda   *float64 // nil means use the engine default; zero is valid
}

// QueryResponse contains ranked results and query metadata.
type QueryResponse struct {
	Results    []types.RetrievedChunk
	CacheHit   bool
	Candidates int // fused candidates considered before diversification
	Duration   time.Duration
}

// Query answers a hybrid query: a similarity-keyed cache lookup, then on a
// miss, RRF fusion of vector and lexical candidates followed by MMR
// diversification down to TopK. The result is cached before returning.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	start := time.Now()

	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	lambda := e.mmrLambda
	if req.MMRLambda != nil {
		lambda = *req.MMRLambda
	}

	h, err := e.resolve(ctx, req.ContainerID)
	if err != nil {
		return nil, err
	}

	h.RLock()
	defer h.RUnlock()

	if results, ok := h.Cache.Lookup(req.Embedding); ok {
		return &QueryResponse{
			Results:  results,
			CacheHit: true,
			Duration: time.Since(start),
		}, nil
	}

	candidates, err := e.ranker.Rank(ctx, h.Store, h.Lexical, req.Text, req.Embedding, req.TopK)
	if err != nil {
		return nil, err
	}

	items, chunks := e.collectItems(ctx, h.Store, candidates)
	selected := rank.Diversify(items, req.TopK, lambda)
	results := buildResults(selected, chunks)

	h.Cache.Store(req.Embedding, results)

	return &QueryResponse{
		Results:    results,
		Candidates: len(candidates),
		Duration:   time.Since(start),
	}, nil
}

// collectItems loads candidate chunks and prepares diversification input.
// Chunks that disappeared between ranking and loading are skipped.
func (e *Engine) collectItems(ctx context.Context, st store.Store, candidates []rank.Candidate) ([]rank.Item, map[string]*types.DocumentChunk) {
	items := make([]rank.Item, 0, len(candidates))
	chunks := make(map[string]*types.DocumentChunk, len(candidates))

	for _, cand := range candidates {
		chunk, err := st.Get(ctx, cand.ChunkID)
		if err != nil {
			continue
		}
		chunks[cand.ChunkID] = chunk
		items = append(items, rank.Item{
			ChunkID:   cand.ChunkID,
			Relevance: cand.Fused,
			Embedding: chunk.Embedding,
			Norm:      chunk.Norm,
		})
	}

	return items, chunks
}

// buildResults projects selected chunks into the read-only result form.
func buildResults(selected []rank.Item, chunks map[string]*types.DocumentChunk) []types.RetrievedChunk {
	results := make([]types.RetrievedChunk, 0, len(selected))
	for i, item := range selected {
		chunk := chunks[item.ChunkID]
		results = append(results, types.RetrievedChunk{
			ChunkID:      item.ChunkID,
			Rank:         i + 1,
			Score:        item.Relevance,
			Content:      chunk.Content,
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Page:         chunk.Page,
			Section:      chunk.Section,
		})
	}
	return results
}

// Reset tears down all resolved handles and clears the container registry.
// Intended for full application reset and tests; durable files are retained.
func (e *Engine) Reset() error {
	e.mu.Lock()
	e.containers = make(map[string]*types.KnowledgeContainer)
	e.mu.Unlock()
	return e.router.ClearAll()
}

// Close releases all container stores.
func (e *Engine) Close() error {
	return e.router.ClearAll()
}
