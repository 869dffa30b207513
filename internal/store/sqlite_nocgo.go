//go:build !cgo

// ABOUTME: Stub for the cgo SQLite backend when cgo is disabled
// ABOUTME: Returns an error so configuration mistakes surface at startup

package store

import "errors"

// NewSQLiteCGOStore is unavailable without cgo.
func NewSQLiteCGOStore(path string) (*SQLiteStore, error) {
	return nil, errors.New("sqlite3 driver requires a cgo build; use driver \"sqlite\"")
}
