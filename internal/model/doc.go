// Package model defines the task record, the change events that describe
// mutations to it, and the wire envelope that carries those events over the
// realtime feed.
package model
