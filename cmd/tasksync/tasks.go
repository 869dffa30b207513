// ABOUTME: One-shot task commands run through the sync engine
// ABOUTME: Each waits for the first resync, runs one command, and reports the outcome

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/2389/tasksync/internal/client"
	"github.com/2389/tasksync/internal/model"
	"github.com/2389/tasksync/internal/render"
	"github.com/2389/tasksync/internal/tui"
)

const (
	syncTimeout    = 15 * time.Second
	confirmTimeout = 5 * time.Second
)

var errNotSignedIn = errors.New("not signed in: run 'tasksync login <token>' first")

// withSyncedClient opens the client, waits for the first resync, and runs fn.
func withSyncedClient(ctx context.Context, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, ok := c.Session.Current(); !ok {
		return errNotSignedIn
	}

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	if err := c.StartAndSync(syncCtx); err != nil {
		return err
	}
	return fn(ctx, c)
}

// awaitRecords blocks until pred holds for the local records or the timeout passes.
func awaitRecords(ctx context.Context, c *client.Client, pred func([]model.Task) bool) bool {
	changes, stop := c.Engine.Watch()
	defer stop()

	timer := time.NewTimer(confirmTimeout)
	defer timer.Stop()
	for {
		if pred(c.Engine.Records()) {
			return true
		}
		select {
		case _, ok := <-changes:
			if !ok {
				return false
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func findTask(tasks []model.Task, id int64) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func parseID(args []string, usage string) (int64, []string, error) {
	if len(args) < 1 {
		return 0, nil, fmt.Errorf("usage: %s", usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid task id %q", args[0])
	}
	return id, args[1:], nil
}

// lookup resolves id against local state.
func lookup(c *client.Client, id int64) (model.Task, error) {
	t, ok := findTask(c.Engine.Records(), id)
	if !ok {
		return model.Task{}, fmt.Errorf("no task with id %d", id)
	}
	return t, nil
}

func confirm(ok bool, done, pending string) {
	if ok {
		tui.OK(os.Stdout, done)
		return
	}
	tui.OK(os.Stdout, pending)
}

func cmdList(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: tasksync ls")
	}
	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		tasks := c.Engine.Records()
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\t \tTITLE\tBY")
		done := 0
		for _, t := range tasks {
			if t.IsComplete {
				done++
			}
			by := t.CreatorName
			if !c.Engine.CanModify(t) {
				by += " (read-only)"
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", t.ID, tui.Checkbox(t.IsComplete), t.Title, by)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("  " + tui.ProgressBar(done, len(tasks), 28))
		return nil
	})
}

func cmdAdd(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("usage: tasksync add <title...>")
	}
	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		created, err := c.Engine.Create(ctx, title)
		if err != nil {
			return err
		}
		tui.OK(os.Stdout, fmt.Sprintf("added #%d %s", created.ID, created.Title))
		return nil
	})
}

func cmdSetDone(ctx context.Context, args []string, want bool) error {
	verb := "done"
	if !want {
		verb = "reopen"
	}
	id, _, err := parseID(args, "tasksync "+verb+" <id>")
	if err != nil {
		return err
	}
	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		t, err := lookup(c, id)
		if err != nil {
			return err
		}
		if t.IsComplete == want {
			tui.OK(os.Stdout, fmt.Sprintf("#%d is already %s", id, stateName(want)))
			return nil
		}
		if err := c.Engine.ToggleComplete(ctx, id, t.IsComplete); err != nil {
			return err
		}
		seen := awaitRecords(ctx, c, func(tasks []model.Task) bool {
			cur, ok := findTask(tasks, id)
			return ok && cur.IsComplete == want
		})
		confirm(seen, fmt.Sprintf("#%d %s", id, stateName(want)), fmt.Sprintf("#%d update sent", id))
		return nil
	})
}

func stateName(done bool) string {
	if done {
		return "complete"
	}
	return "open"
}

func cmdEdit(ctx context.Context, args []string) error {
	id, rest, err := parseID(args, "tasksync edit <id> <title...>")
	if err != nil {
		return err
	}
	title := strings.Join(rest, " ")
	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		if _, err := lookup(c, id); err != nil {
			return err
		}
		if err := c.Engine.Update(ctx, id, title); err != nil {
			return err
		}
		want := model.NormalizeTitle(title)
		seen := awaitRecords(ctx, c, func(tasks []model.Task) bool {
			cur, ok := findTask(tasks, id)
			return ok && cur.Title == want
		})
		confirm(seen, fmt.Sprintf("#%d renamed", id), fmt.Sprintf("#%d update sent", id))
		return nil
	})
}

func cmdDelete(ctx context.Context, args []string) error {
	id, _, err := parseID(args, "tasksync rm <id>")
	if err != nil {
		return err
	}
	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		if _, err := lookup(c, id); err != nil {
			return err
		}
		if err := c.Engine.Delete(ctx, id); err != nil {
			return err
		}
		seen := awaitRecords(ctx, c, func(tasks []model.Task) bool {
			_, ok := findTask(tasks, id)
			return !ok
		})
		confirm(seen, fmt.Sprintf("#%d deleted", id), fmt.Sprintf("#%d delete sent", id))
		return nil
	})
}

func cmdWatch(ctx context.Context) error {
	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, ok := c.Session.Current(); !ok {
		return errNotSignedIn
	}
	if err := c.Start(); err != nil {
		return err
	}
	return tui.Run(c.Engine)
}

func cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	asHTML := fs.Bool("html", false, "render HTML instead of Markdown")
	out := fs.String("out", "", "write to FILE instead of stdout")
	title := fs.String("title", render.DefaultHeading, "heading text")
	bare := fs.Bool("no-creators", false, "omit creator names")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withSyncedClient(ctx, func(ctx context.Context, c *client.Client) error {
		opts := render.Options{Heading: *title, HideCreators: *bare}
		tasks := c.Engine.Records()

		var doc string
		if *asHTML {
			var err error
			if doc, err = render.HTML(tasks, opts); err != nil {
				return err
			}
		} else {
			doc = render.Markdown(tasks, opts)
		}

		if *out == "" {
			fmt.Print(doc)
			return nil
		}
		if err := os.WriteFile(*out, []byte(doc), 0644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		tui.OK(os.Stdout, fmt.Sprintf("exported %d tasks to %s", len(tasks), *out))
		return nil
	})
}
