//go:build sqlite_vec && !purego

package storage

// Compiled with CGO and the sqlite_vec tag. Vector similarity runs inside
// SQLite through the sqlite-vec extension when it is loaded; FTS5 requires
// the sqlite_fts5 tag of the mattn driver.
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether vec_distance_cosine may be used
	VectorExtensionAvailable = true

	// BuildMode names the build configuration for version output
	BuildMode = "cgo"
)
