// Package sqliteexternal provides the optional CGO SQLite driver.
//
// The document store runs on pure Go modernc.org/sqlite by default. Building
// with the cgo_sqlite tag links github.com/mattn/go-sqlite3 instead:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/bdoc
//
// core/sqlite imports this package in that mode; nothing else needs to.
package sqliteexternal
