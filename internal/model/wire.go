// ABOUTME: Wire envelope for the realtime feed and its validating decoder.
// ABOUTME: Raw frames become typed ChangeEvents here, or are rejected as malformed.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedEvent wraps every reason a wire frame could not become a ChangeEvent.
var ErrMalformedEvent = errors.New("malformed change event")

// TasksChannel is the channel carrying changes to the tasks table.
const TasksChannel = "public:tasks"

// Wire event types. SYSTEM frames carry a Status instead of a payload.
const (
	TypeInsert = string(KindInsert)
	TypeUpdate = string(KindUpdate)
	TypeDelete = string(KindDelete)
	TypeSystem = "SYSTEM"
)

// System statuses.
const (
	StatusSubscribed = "subscribed"
	StatusHeartbeat  = "heartbeat"
)

// WireEvent is the JSON envelope pushed to realtime subscribers. ID is unique
// per published change, so a re-delivered envelope repeats its ID.
type WireEvent struct {
	ID              string          `json:"id"`
	Channel         string          `json:"channel"`
	Type            string          `json:"type"`
	Status          string          `json:"status,omitempty"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// IsSystem reports whether the envelope is a control frame.
func (w WireEvent) IsSystem() bool {
	return w.Type == TypeSystem
}

// NewWireEvent encodes ev for channel with a fresh envelope id.
func NewWireEvent(channel string, ev ChangeEvent) (WireEvent, error) {
	w := WireEvent{
		ID:              uuid.New().String(),
		Channel:         channel,
		Type:            string(ev.Kind),
		CommitTimestamp: time.Now().UTC(),
	}

	switch ev.Kind {
	case KindInsert, KindUpdate:
		raw, err := json.Marshal(ev.Record)
		if err != nil {
			return WireEvent{}, fmt.Errorf("encoding record: %w", err)
		}
		w.New = raw
	case KindDelete:
		old := Task{ID: ev.ID}
		if ev.Old != nil {
			old = *ev.Old
		}
		raw, err := json.Marshal(old)
		if err != nil {
			return WireEvent{}, fmt.Errorf("encoding old record: %w", err)
		}
		w.Old = raw
	default:
		return WireEvent{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return w, nil
}

// SystemEvent builds a control frame for channel.
func SystemEvent(channel, status string) WireEvent {
	return WireEvent{
		ID:              uuid.New().String(),
		Channel:         channel,
		Type:            TypeSystem,
		Status:          status,
		CommitTimestamp: time.Now().UTC(),
	}
}

// ParseChangeEvent validates a data frame and converts it into a ChangeEvent.
// Every failure wraps ErrMalformedEvent.
func ParseChangeEvent(w WireEvent) (ChangeEvent, error) {
	switch w.Type {
	case TypeInsert, TypeUpdate:
		rec, err := decodeTask(w.New)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("%w: %s new: %v", ErrMalformedEvent, w.Type, err)
		}
		if w.Type == TypeInsert {
			return InsertEvent(rec), nil
		}
		return UpdateEvent(rec), nil
	case TypeDelete:
		old, err := decodeTask(w.Old)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("%w: DELETE old: %v", ErrMalformedEvent, err)
		}
		// a bare {"id": n} is a valid delete; keep the snapshot only if it has content
		var snapshot *Task
		if old.CreatorID != "" {
			snapshot = &old
		}
		return DeleteEvent(old.ID, snapshot), nil
	default:
		return ChangeEvent{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, w.Type)
	}
}

func decodeTask(raw json.RawMessage) (Task, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Task{}, errors.New("missing payload")
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, err
	}
	if t.ID <= 0 {
		return Task{}, fmt.Errorf("invalid id %d", t.ID)
	}
	return t, nil
}
