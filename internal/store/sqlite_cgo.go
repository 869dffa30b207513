//go:build cgo

// ABOUTME: Optional SQLite backend using the cgo mattn/go-sqlite3 driver
// ABOUTME: Selected with database.driver "sqlite3" in builds with cgo enabled

package store

import (
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteCGOStore opens the database at path with the cgo driver.
func NewSQLiteCGOStore(path string) (*SQLiteStore, error) {
	return openSQLite("sqlite3", path)
}
