// ABOUTME: Error taxonomy for mutation commands and classification of store failures
// ABOUTME: Each kind maps to a distinct user-visible message

package engine

import (
	"errors"
	"fmt"

	"github.com/2389/tasksync/internal/model"
)

// Command error kinds. Match with errors.Is.
var (
	ErrUnauthenticated     = errors.New("not signed in")
	ErrValidation          = errors.New("invalid input")
	ErrAuthorizationDenied = errors.New("not permitted")
	ErrTransport           = errors.New("store unreachable")
)

// CommandError is returned by every failed command.
type CommandError struct {
	Op   string // create | toggle | update | delete
	ID   int64  // zero for create
	Kind error  // one of the Err* kinds above
	Err  error  // underlying cause, may be nil
}

func (e *CommandError) Error() string {
	var target string
	if e.ID != 0 {
		target = fmt.Sprintf(" task %d", e.ID)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s%s: %v", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s%s: %v: %v", e.Op, target, e.Kind, e.Err)
}

// Is matches the error kind.
func (e *CommandError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// classify maps a RecordStore failure onto a command error kind.
func classify(err error) error {
	switch {
	case errors.Is(err, model.ErrPolicyViolation):
		return ErrAuthorizationDenied
	case errors.Is(err, model.ErrUnauthorized):
		return ErrUnauthenticated
	default:
		return ErrTransport
	}
}

// kindLabel names an error kind for logs and metrics.
func kindLabel(kind error) string {
	switch kind {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrValidation:
		return "validation"
	case ErrAuthorizationDenied:
		return "authorization_denied"
	default:
		return "transport"
	}
}

// UserMessage returns the message to show a user for a command failure.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "You must be signed in to do that."
	case errors.Is(err, ErrValidation):
		return "Task title cannot be empty."
	case errors.Is(err, ErrAuthorizationDenied):
		return "You can only change tasks you created."
	case errors.Is(err, ErrTransport):
		return "Could not reach the server. Please try again."
	default:
		return "Something went wrong."
	}
}
