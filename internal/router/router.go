// Package router maps knowledge-container identities to their isolated
// store, lexical index, and query cache triples. Triples are constructed
// lazily on first access and memoized; the router is the single
// serialization point for creation, so concurrent first access never yields
// duplicate stores.
package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ragforge/kbengine/internal/lexical"
	"github.com/ragforge/kbengine/internal/querycache"
	"github.com/ragforge/kbengine/internal/store"
	"github.com/ragforge/kbengine/pkg/types"
)

// Handle bundles a container's store, lexical index, and query cache. The
// embedded RWMutex is the per-container lock: mutations (ingest, delete,
// clear) take the write lock, queries take the read lock, and cache
// invalidation happens under the same write lock as the mutation it follows.
type Handle struct {
	sync.RWMutex

	Container types.KnowledgeContainer
	Store     store.Store
	Lexical   *lexical.Index
	Cache     *querycache.Cache
}

// Config controls router construction.
type Config struct {
	// DataDir holds one SQLite file per durable container.
	DataDir string

	// CacheConfig is applied to every container's query cache.
	CacheConfig querycache.Config
}

// Router lazily constructs and memoizes per-container handles. Its lock
// covers only the create-or-fetch path, so resolving one container never
// blocks searches running in others.
type Router struct {
	mu      sync.Mutex
	handles map[string]*Handle
	group   singleflight.Group

	dataDir  string
	cacheCfg querycache.Config
}

// New creates a Router.
func New(cfg Config) *Router {
	return &Router{
		handles:  make(map[string]*Handle),
		dataDir:  cfg.DataDir,
		cacheCfg: cfg.CacheConfig,
	}
}

// Resolve returns the handle for a container, building it on first access.
// Concurrent first accesses are collapsed to a single construction.
func (r *Router) Resolve(ctx context.Context, container types.KnowledgeContainer) (*Handle, error) {
	if err := container.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if h, ok := r.handles[container.ID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(container.ID, func() (interface{}, error) {
		// Re-check: a concurrent Do may have completed between the map check
		// and this call.
		r.mu.Lock()
		if h, ok := r.handles[container.ID]; ok {
			r.mu.Unlock()
			return h, nil
		}
		r.mu.Unlock()

		h, err := r.build(ctx, container)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.handles[container.ID] = h
		r.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// build constructs the store/lexical/cache triple for a container,
// selecting the backend by its declared kind.
func (r *Router) build(ctx context.Context, container types.KnowledgeContainer) (*Handle, error) {
	var (
		st  store.Store
		err error
	)

	switch container.Backend {
	case types.BackendVolatile:
		st, err = store.NewMemoryStore(container.Dimension)
	case types.BackendDurable:
		if mkErr := os.MkdirAll(r.dataDir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", mkErr)
		}
		st, err = store.NewSQLiteStore(r.containerPath(container.ID), container.Dimension)
	case types.BackendANN:
		return nil, fmt.Errorf("backend %q: %w", container.Backend, types.ErrNotImplemented)
	default:
		return nil, fmt.Errorf("backend %q: %w", container.Backend, types.ErrNotImplemented)
	}
	if err != nil {
		return nil, err
	}

	// Rebuild the lexical index from whatever the store loaded; empty for
	// volatile and fresh durable containers.
	ix := lexical.NewIndex()
	chunks, err := st.List(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for _, c := range chunks {
		ix.Add(c.ID, c.Content)
	}

	return &Handle{
		Container: container,
		Store:     st,
		Lexical:   ix,
		Cache:     querycache.New(r.cacheCfg),
	}, nil
}

// Invalidate tears down a container's handle and removes its durable file.
// Used on container deletion; unknown IDs are a no-op.
func (r *Router) Invalidate(containerID string) error {
	r.mu.Lock()
	h, ok := r.handles[containerID]
	delete(r.handles, containerID)
	r.mu.Unlock()

	if ok {
		h.Lock()
		defer h.Unlock()
		if err := h.Store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}

	// Remove the durable file whether or not the handle was resolved.
	if err := os.Remove(r.containerPath(containerID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove container file: %w", err)
	}
	return nil
}

// ClearAll closes every handle and resets router state. Durable files are
// left in place; use Invalidate to delete a container's data.
func (r *Router) ClearAll() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		h.Lock()
		if err := h.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.Unlock()
	}
	return firstErr
}

// Resolved reports whether a handle currently exists for the container.
func (r *Router) Resolved(containerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[containerID]
	return ok
}

func (r *Router) containerPath(containerID string) string {
	return filepath.Join(r.dataDir, containerID+".db")
}
