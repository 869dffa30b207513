// ABOUTME: Renders the task board as a Markdown checklist or as HTML
// ABOUTME: HTML goes through goldmark with the GFM task list extension

// Package render exports a task board for humans.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/tasksync/internal/model"
)

// DefaultHeading is used when Options.Heading is empty.
const DefaultHeading = "Tasks"

// Options tweak the rendered board.
type Options struct {
	Heading string
	// HideCreators drops the "(by ...)" attribution.
	HideCreators bool
}

var md = goldmark.New(goldmark.WithExtensions(extension.TaskList))

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"|", `\|`,
)

// Markdown renders tasks, in the order given, as a GFM checklist.
func Markdown(tasks []model.Task, opts Options) string {
	heading := opts.Heading
	if heading == "" {
		heading = DefaultHeading
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escaper.Replace(heading))

	if len(tasks) == 0 {
		b.WriteString("_No tasks._\n")
		return b.String()
	}

	done := 0
	for _, t := range tasks {
		box := " "
		if t.IsComplete {
			box = "x"
			done++
		}
		fmt.Fprintf(&b, "- [%s] %s", box, escaper.Replace(t.Title))
		if !opts.HideCreators && t.CreatorName != "" {
			fmt.Fprintf(&b, " (by %s)", escaper.Replace(t.CreatorName))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%d of %d done\n", done, len(tasks))
	return b.String()
}

// HTML renders tasks as an HTML fragment.
func HTML(tasks []model.Task, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(tasks, opts)), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}
