// ABOUTME: Tests for the CLI output helpers shared with the board
// ABOUTME: Checks that status lines and panels carry their text and glyphs

package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusLines(t *testing.T) {
	var buf bytes.Buffer
	OK(&buf, "added #3 Buy milk")
	Fail(&buf, "You can only change tasks you created.")

	out := buf.String()
	assert.Contains(t, out, "✔ added #3 Buy milk")
	assert.Contains(t, out, "✖ You can only change tasks you created.")
}

func TestPanelKeepsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	Panel(&buf, []string{"Ann Lee", "ID:      u1"})

	assert.Contains(t, buf.String(), "Ann Lee")
	assert.Contains(t, buf.String(), "ID:      u1")
}

func TestCheckbox(t *testing.T) {
	assert.Contains(t, Checkbox(true), boxChecked)
	assert.Contains(t, Checkbox(false), boxUnchecked)
}
