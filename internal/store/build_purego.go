//go:build purego || !cgo_sqlite
// +build purego !cgo_sqlite

package store

// This file is compiled when building without CGO. It uses a pure Go SQLite
// implementation.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
