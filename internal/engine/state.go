// ABOUTME: Ordered local record set and the idempotent reconciliation rules applied to it
// ABOUTME: Not safe for concurrent use; Engine confines it to its event loop

package engine

import (
	"slices"

	"github.com/2389/tasksync/internal/model"
)

// Outcome reports what applying an event did to the state.
type Outcome int

const (
	// OutcomeInserted means a record was added at its ordered position.
	OutcomeInserted Outcome = iota
	// OutcomeReplaced means an existing record was overwritten in place.
	OutcomeReplaced
	// OutcomeRemoved means a record was deleted.
	OutcomeRemoved
	// OutcomeDuplicateIgnored means the payload equalled the stored record.
	OutcomeDuplicateIgnored
	// OutcomeStaleDeleteIgnored means a Delete named an id not present.
	OutcomeStaleDeleteIgnored
	// OutcomeStaleInsertIgnored means an optimistic insert named an id a
	// Delete event has already removed.
	OutcomeStaleInsertIgnored
)

// maxTombstones bounds how many removed ids State remembers.
const maxTombstones = 1024

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeRemoved:
		return "removed"
	case OutcomeDuplicateIgnored:
		return "duplicate_ignored"
	case OutcomeStaleDeleteIgnored:
		return "stale_delete_ignored"
	case OutcomeStaleInsertIgnored:
		return "stale_insert_ignored"
	default:
		return "unknown"
	}
}

// Changed reports whether the outcome modified the record set.
func (o Outcome) Changed() bool {
	return o == OutcomeInserted || o == OutcomeReplaced || o == OutcomeRemoved
}

// State is the local record set. It also remembers recently removed ids so
// that a late optimistic insert cannot bring a deleted record back.
type State struct {
	records []model.Task

	removed    map[int64]struct{}
	removedLog []int64
}

// NewState returns an empty state.
func NewState() *State {
	return &State{removed: make(map[int64]struct{})}
}

// Records returns a copy of the records in ascending id order.
func (s *State) Records() []model.Task {
	return slices.Clone(s.records)
}

// Len returns the number of records.
func (s *State) Len() int {
	return len(s.records)
}

// Get returns the record with id.
func (s *State) Get(id int64) (model.Task, bool) {
	i, ok := s.find(id)
	if !ok {
		return model.Task{}, false
	}
	return s.records[i], true
}

// ApplyOptimisticInsert records a task the local client just created. The
// task carries its server-assigned id, so the matching Insert event later
// replaces it in place. Events for the id may arrive before the create call
// returns; the feed wins, so an id already present or already removed is
// left alone.
func (s *State) ApplyOptimisticInsert(t model.Task) Outcome {
	if _, gone := s.removed[t.ID]; gone {
		return OutcomeStaleInsertIgnored
	}
	i, ok := s.find(t.ID)
	if ok {
		return OutcomeDuplicateIgnored
	}
	s.records = slices.Insert(s.records, i, t)
	return OutcomeInserted
}

// ApplyChangeEvent reconciles one change event.
func (s *State) ApplyChangeEvent(ev model.ChangeEvent) Outcome {
	switch ev.Kind {
	case model.KindInsert, model.KindUpdate:
		delete(s.removed, ev.Record.ID)
		return s.upsert(ev.Record)
	case model.KindDelete:
		s.forget(ev.ID)
		i, ok := s.find(ev.ID)
		if !ok {
			return OutcomeStaleDeleteIgnored
		}
		s.records = slices.Delete(s.records, i, i+1)
		return OutcomeRemoved
	default:
		// unparsed kinds never reach here; the feed validates them
		return OutcomeDuplicateIgnored
	}
}

// Resync replaces every record with full. Input order does not matter;
// for repeated ids the last occurrence wins.
func (s *State) Resync(full []model.Task) {
	byID := make(map[int64]model.Task, len(full))
	for _, t := range full {
		byID[t.ID] = t
	}
	for id := range byID {
		delete(s.removed, id)
	}
	records := make([]model.Task, 0, len(byID))
	for _, t := range byID {
		records = append(records, t)
	}
	slices.SortFunc(records, func(a, b model.Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	s.records = records
}

func (s *State) upsert(t model.Task) Outcome {
	i, ok := s.find(t.ID)
	if ok {
		if s.records[i].Equal(t) {
			return OutcomeDuplicateIgnored
		}
		s.records[i] = t
		return OutcomeReplaced
	}
	s.records = slices.Insert(s.records, i, t)
	return OutcomeInserted
}

// forget marks id as removed, evicting the oldest entry past maxTombstones.
func (s *State) forget(id int64) {
	if _, ok := s.removed[id]; ok {
		return
	}
	s.removed[id] = struct{}{}
	s.removedLog = append(s.removedLog, id)
	for len(s.removedLog) > maxTombstones {
		delete(s.removed, s.removedLog[0])
		s.removedLog = s.removedLog[1:]
	}
}

// find returns the index of id, or the index it would be inserted at.
func (s *State) find(id int64) (int, bool) {
	return slices.BinarySearchFunc(s.records, id, func(t model.Task, id int64) int {
		switch {
		case t.ID < id:
			return -1
		case t.ID > id:
			return 1
		default:
			return 0
		}
	})
}
