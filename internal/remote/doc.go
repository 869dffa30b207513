// ABOUTME: Package remote talks to the tasksync REST API
// ABOUTME: Its Client is the engine's record store

// Package remote implements the record store over HTTP. Status codes are
// mapped back to the sentinel errors the engine classifies: a 403 carrying
// the row policy code becomes model.ErrPolicyViolation and a 401 becomes
// model.ErrUnauthorized. Everything else is a transport failure.
package remote
