// Package identity manages the signed-in user on a tasksync client.
//
// A Provider loads and persists the bearer token; TokenProvider reads it
// from TASKSYNC_TOKEN or a 0600 credential file. Manager owns the current
// Session with an explicit lifecycle: Init, Subscribe, Current, Login,
// Logout, Teardown. The engine receives a Manager by injection; there is no
// package-level session.
package identity
