//go:build cgo_sqlite

package storage

// Compiled when building with CGO and the cgo_sqlite tag. The
// sqlite_fts5 tag is required too: mattn/go-sqlite3 only compiles its
// FTS5 module in when asked, and the schema migration fails without it.
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./...
//
// Uses github.com/mattn/go-sqlite3, which benefits from the C
// implementation on large catalogs.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
