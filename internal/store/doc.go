// Package store persists the shared task list for the tasksync server.
//
// # Backends
//
// Store is implemented by:
//
//   - SQLiteStore over modernc.org/sqlite (driver "sqlite", the default)
//   - SQLiteStore over github.com/mattn/go-sqlite3 (driver "sqlite3", cgo builds only)
//   - PostgresStore over github.com/jackc/pgx/v5/stdlib (driver "postgres")
//   - MockStore, an in-memory implementation for tests
//
// Open picks a backend by driver name.
//
// # Row policy
//
// Every mutation names the acting principal. Inserts must carry the actor as
// creator_id; updates and deletes are only allowed for the record's creator.
// Violations return model.ErrPolicyViolation, which the HTTP layer reports
// with code 42501.
//
// # Errors
//
//   - ErrNotFound: no task with the requested id
//   - ErrInvalidTask: empty title or missing creator fields
//   - model.ErrPolicyViolation: actor is not allowed to perform the mutation
//
// Ids come from AUTOINCREMENT / BIGSERIAL and are never reused, so a client
// can order records by id.
package store
