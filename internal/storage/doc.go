// Package storage provides SQLite-based persistence for the place
// catalog: place records, their embeddings, an FTS5 full-text index over
// name/summary/tags, and user feedback.
//
// The engine treats the catalog as read-only. Writes happen only through
// the ingestion path, and the search index always observes a consistent,
// fully-built catalog.
//
// Two build configurations are supported, mirrored in build_cgo.go and
// build_purego.go:
//
//   - CGO build (cgo_sqlite sqlite_fts5 tags): github.com/mattn/go-sqlite3,
//     which needs sqlite_fts5 to compile its FTS5 module in
//   - Pure Go build (default): modernc.org/sqlite, which always ships FTS5
//
// Vector similarity is always computed in Go over BLOB-serialized
// float32 vectors.
package storage
