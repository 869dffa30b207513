// Package engine keeps a client's ordered view of the shared task list
// consistent with the remote record store.
//
// State is the local record set, always sorted by id ascending with at most
// one record per id. Every reconciliation rule is idempotent: a re-delivered
// Insert replaces in place, an Update for an unknown id establishes the
// record, and a Delete for an unknown id is a no-op. Resync replaces the set
// wholesale with a fresh query.
//
// Engine owns a State inside a single event-loop goroutine. Change events,
// optimistic inserts and resyncs are posted to the loop and applied one at a
// time; readers see immutable snapshots. Engine also executes the mutation
// commands. Only Create touches local state, using the server-assigned id
// so the later Insert event collapses onto it. Toggle, Update and Delete
// wait for the change feed.
package engine
