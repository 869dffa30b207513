// ABOUTME: Task record shared by the server store, the remote client, and the sync engine.
// ABOUTME: Also holds the partial update shape and the policy violation sentinel.

package model

import (
	"errors"
	"strings"
	"time"
)

// ErrPolicyViolation is returned when the record store rejects a mutation
// because the acting principal does not satisfy the row policy. On the HTTP
// wire it travels as error code PolicyViolationCode.
var ErrPolicyViolation = errors.New("row policy violation")

// ErrUnauthorized is returned when the record store rejects the caller's
// credentials (HTTP 401).
var ErrUnauthorized = errors.New("credentials rejected")

// PolicyViolationCode is the error code the REST API uses for ErrPolicyViolation.
const PolicyViolationCode = "42501"

// Task is one entry in the shared list. ID is assigned by the store and
// never reused. CreatorID, CreatorName and CreatorAvatar are fixed at
// creation time.
type Task struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	IsComplete    bool      `json:"is_complete"`
	CreatorID     string    `json:"creator_id"`
	CreatorName   string    `json:"creator_name"`
	CreatorAvatar *string   `json:"creator_avatar,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

// Equal reports whether two tasks carry identical field values.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.IsComplete != o.IsComplete ||
		t.CreatorID != o.CreatorID || t.CreatorName != o.CreatorName ||
		!t.CreatedAt.Equal(o.CreatedAt) {
		return false
	}
	switch {
	case t.CreatorAvatar == nil && o.CreatorAvatar == nil:
		return true
	case t.CreatorAvatar == nil || o.CreatorAvatar == nil:
		return false
	default:
		return *t.CreatorAvatar == *o.CreatorAvatar
	}
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title      *string `json:"title,omitempty"`
	IsComplete *bool   `json:"is_complete,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.IsComplete == nil
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.IsComplete != nil {
		t.IsComplete = *p.IsComplete
	}
	return t
}

// NormalizeTitle trims surrounding whitespace. An empty result means the
// title is not acceptable.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}
