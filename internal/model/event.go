// ABOUTME: ChangeEvent describes one insert, update, or delete of a task.
// ABOUTME: Events are delivered at least once and ordered only per record.

package model

import "fmt"

// EventKind identifies the mutation a ChangeEvent describes.
type EventKind string

// EventKind values, matching the wire event types.
const (
	KindInsert EventKind = "INSERT"
	KindUpdate EventKind = "UPDATE"
	KindDelete EventKind = "DELETE"
)

// ChangeEvent is a validated change notification. Insert and Update carry the
// full record; Delete carries only the id plus an optional prior snapshot.
type ChangeEvent struct {
	Kind   EventKind
	Record Task
	ID     int64
	Old    *Task
}

// InsertEvent builds an Insert event for t.
func InsertEvent(t Task) ChangeEvent {
	return ChangeEvent{Kind: KindInsert, Record: t, ID: t.ID}
}

// UpdateEvent builds an Update event for t.
func UpdateEvent(t Task) ChangeEvent {
	return ChangeEvent{Kind: KindUpdate, Record: t, ID: t.ID}
}

// DeleteEvent builds a Delete event for id. old may be nil.
func DeleteEvent(id int64, old *Task) ChangeEvent {
	return ChangeEvent{Kind: KindDelete, ID: id, Old: old}
}

// TaskID returns the id of the affected record for every kind.
func (e ChangeEvent) TaskID() int64 {
	if e.Kind == KindDelete {
		return e.ID
	}
	return e.Record.ID
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s(%d)", e.Kind, e.TaskID())
}
