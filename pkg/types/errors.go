package types

import "errors"

// Engine error taxonomy. Validation errors are detected at the boundary
// (store or embed time) and rejected before entering any index.
var (
	// ErrInvalidDimension is returned when an embedding's length does not
	// match the owning container's declared dimension.
	ErrInvalidDimension = errors.New("embedding dimension mismatch")

	// ErrEmptyInput is returned when blank text reaches an embedding call.
	ErrEmptyInput = errors.New("input text cannot be empty")

	// ErrContainsNaN is returned when an embedding contains a NaN component.
	ErrContainsNaN = errors.New("embedding contains NaN")

	// ErrContainsInf is returned when an embedding contains an infinite component.
	ErrContainsInf = errors.New("embedding contains infinite value")

	// ErrModelUnavailable is returned when the embedding provider is not ready.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrContainerNotFound is returned for operations on an unknown container.
	ErrContainerNotFound = errors.New("container not found")

	// ErrNotImplemented is returned for configured but unsupported backends.
	ErrNotImplemented = errors.New("not implemented")
)
