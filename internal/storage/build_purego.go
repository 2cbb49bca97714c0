//go:build purego || !sqlite_vec

package storage

// Default build: pure Go SQLite (no C toolchain, FTS5 built in). Cosine
// similarity is computed in Go over the stored vectors.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether vec_distance_cosine may be used
	VectorExtensionAvailable = false

	// BuildMode names the build configuration for version output
	BuildMode = "purego"
)
