// ABOUTME: Mutation commands: create, toggle, update, delete
// ABOUTME: Each is attempted once; only create applies an optimistic local insert

package engine

import (
	"context"

	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
)

// Create validates title, submits a new task owned by the current principal,
// and inserts the returned record locally.
func (e *Engine) Create(ctx context.Context, title string) (model.Task, error) {
	p, ok := e.session.Current()
	if !ok {
		return model.Task{}, e.fail("create", 0, ErrUnauthenticated, nil)
	}
	title = model.NormalizeTitle(title)
	if title == "" {
		return model.Task{}, e.fail("create", 0, ErrValidation, nil)
	}

	created, err := e.store.Insert(ctx, model.Task{
		Title:         title,
		IsComplete:    false,
		CreatorID:     p.ID,
		CreatorName:   p.DisplayName(),
		CreatorAvatar: p.Avatar(),
	})
	if err != nil {
		return model.Task{}, e.fail("create", 0, classify(err), err)
	}

	err = e.do(ctx, func(s *State) {
		outcome := s.ApplyOptimisticInsert(created)
		e.remember(model.InsertEvent(created), true)
		e.logger.Debug("optimistic insert", "id", created.ID, "outcome", outcome.String())
		if outcome.Changed() {
			e.publish()
		}
	})
	if err != nil {
		// the record exists remotely; the feed or next resync will deliver it
		e.logger.Debug("skipping optimistic insert", "id", created.ID, "error", err)
	}
	return created, nil
}

// ToggleComplete flips the completion flag, given the value the caller last
// saw. Local state changes only when the Update event arrives.
func (e *Engine) ToggleComplete(ctx context.Context, id int64, previous bool) error {
	next := !previous
	if err := e.store.Update(ctx, id, model.TaskPatch{IsComplete: &next}); err != nil {
		return e.fail("toggle", id, classify(err), err)
	}
	return nil
}

// Update replaces the title. Local state changes only when the Update event arrives.
func (e *Engine) Update(ctx context.Context, id int64, newTitle string) error {
	title := model.NormalizeTitle(newTitle)
	if title == "" {
		return e.fail("update", id, ErrValidation, nil)
	}
	if err := e.store.Update(ctx, id, model.TaskPatch{Title: &title}); err != nil {
		return e.fail("update", id, classify(err), err)
	}
	return nil
}

// Delete removes the task. Local state changes only when the Delete event arrives.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return e.fail("delete", id, classify(err), err)
	}
	return nil
}

func (e *Engine) fail(op string, id int64, kind, cause error) error {
	label := kindLabel(kind)
	metrics.CommandFailures.WithLabelValues(op, label).Inc()
	e.logger.Warn("command failed", "op", op, "id", id, "kind", label, "error", cause)
	return &CommandError{Op: op, ID: id, Kind: kind, Err: cause}
}
