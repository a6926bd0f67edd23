package types

import "errors"

// BackendKind selects the storage backend for a knowledge container.
type BackendKind string

const (
	// BackendDurable persists chunks to a per-container file on disk.
	BackendDurable BackendKind = "durable"
	// BackendVolatile keeps chunks in memory only.
	BackendVolatile BackendKind = "volatile"
	// BackendANN is reserved for an approximate-nearest-neighbor index.
	// Resolving a container with this backend returns ErrNotImplemented.
	BackendANN BackendKind = "ann"
)

// KnowledgeContainer is an isolated logical partition of documents and chunks
// with its own embedding configuration. Chunks from one container are never
// visible to another container's search.
type KnowledgeContainer struct {
	ID        string
	Name      string
	Dimension int
	Backend   BackendKind

	// Strict enables downstream confidence gating. The engine carries the
	// flag but does not interpret it.
	Strict bool
}

// Validate checks container configuration.
func (k *KnowledgeContainer) Validate() error {
	if k.ID == "" {
		return errors.New("container ID cannot be empty")
	}

	if k.Dimension <= 0 {
		return errors.New("container dimension must be positive")
	}

	switch k.Backend {
	case BackendDurable, BackendVolatile, BackendANN:
		return nil
	default:
		return errors.New("invalid backend kind")
	}
}
