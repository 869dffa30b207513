// ABOUTME: Bubble Tea model for the live shared task board
// ABOUTME: Re-renders on engine change signals; edits go through the command executor

// Package tui is the interactive terminal board.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389/tasksync/internal/engine"
	"github.com/2389/tasksync/internal/identity"
	"github.com/2389/tasksync/internal/model"
)

// Board is the engine surface the UI needs.
type Board interface {
	Snapshot() *engine.Snapshot
	Watch() (<-chan struct{}, func())
	Principal() (identity.Principal, bool)
	CanModify(t model.Task) bool
	Create(ctx context.Context, title string) (model.Task, error)
	ToggleComplete(ctx context.Context, id int64, previous bool) error
	Update(ctx context.Context, id int64, newTitle string) error
	Delete(ctx context.Context, id int64) error
	Resync(ctx context.Context) error
}

var _ Board = (*engine.Engine)(nil)

const commandTimeout = 10 * time.Second

type taskItem struct {
	task model.Task
	mine bool
}

func (i taskItem) Title() string       { return i.task.Title }
func (i taskItem) Description() string { return "" }
func (i taskItem) FilterValue() string { return i.task.Title }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(taskItem)

	text := it.task.Title
	if it.task.IsComplete {
		text = doneStyle.Render(text)
	}
	by := mutedStyle.Render("· " + it.task.CreatorName)
	if !it.mine {
		by = mutedStyle.Render(lockGlyph + " " + it.task.CreatorName)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s %s\n", prefix, Checkbox(it.task.IsComplete), text, by)
}

type inputMode int

const (
	modeList inputMode = iota
	modeAdd
	modeEdit
)

// Messages.
type (
	changedMsg struct{}
	closedMsg  struct{}
	resultMsg  struct {
		op  string
		err error
	}
)

// Model is the board's Bubble Tea model.
type Model struct {
	board  Board
	list   list.Model
	input  textinput.Model
	mode   inputMode
	editID int64

	changes <-chan struct{}
	stop    func()

	status    string
	statusErr bool
	version   uint64
	width     int
	height    int
}

// New creates a board model over b.
func New(b Board) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("task", "tasks")

	bindings := []key.Binding{
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resync")),
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return bindings }
	l.AdditionalFullHelpKeys = func() []key.Binding { return bindings }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 500

	changes, stop := b.Watch()
	m := Model{board: b, list: l, input: ti, changes: changes, stop: stop, width: 80, height: 24}
	m.refresh()
	return m
}

// Run starts the board full-screen and blocks until the user quits.
func Run(b Board) error {
	m := New(b)
	defer m.stop()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return changedMsg{}
	}
}

// Init starts listening for engine changes.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// refresh rebuilds the list from the latest snapshot.
func (m *Model) refresh() {
	snap := m.board.Snapshot()
	m.version = snap.Version

	items := make([]list.Item, 0, len(snap.Tasks))
	done := 0
	for _, t := range snap.Tasks {
		if t.IsComplete {
			done++
		}
		items = append(items, taskItem{task: t, mine: m.board.CanModify(t)})
	}
	m.list.SetItems(items)

	who := "signed out"
	if p, ok := m.board.Principal(); ok {
		who = p.DisplayName()
	}
	sync := pendingStyle.Render("syncing")
	if snap.Synced {
		sync = successStyle.Render("live")
	}
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d   %s  %s",
		titleStyle.Render("Tasks"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), len(snap.Tasks)-done,
		accentStyle.Render("Total"), len(snap.Tasks),
		sync, mutedStyle.Render(who),
	)
}

func (m *Model) selected() (model.Task, bool) {
	it, ok := m.list.SelectedItem().(taskItem)
	if !ok {
		return model.Task{}, false
	}
	return it.task, true
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
}

// run executes fn off the UI goroutine and reports the outcome.
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return resultMsg{op: op, err: fn(ctx)}
	}
}

// guard reports whether the principal may change t, setting the status if not.
func (m *Model) guard(t model.Task) bool {
	if m.board.CanModify(t) {
		return true
	}
	m.setStatus(engine.UserMessage(&engine.CommandError{Kind: engine.ErrAuthorizationDenied}), true)
	return false
}

// Update handles input and engine signals.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	case closedMsg:
		m.setStatus("disconnected", true)
		return m, nil
	case resultMsg:
		if msg.err != nil {
			m.setStatus(engine.UserMessage(msg.err), true)
		} else {
			m.setStatus(msg.op, false)
		}
		return m, nil
	}

	if m.mode != modeList {
		return m.updateInput(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch k.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			t, ok := m.selected()
			if !ok || !m.guard(t) {
				return m, nil
			}
			return m, m.run("toggled", func(ctx context.Context) error {
				return m.board.ToggleComplete(ctx, t.ID, t.IsComplete)
			})
		case "a":
			m.mode = modeAdd
			m.input.SetValue("")
			m.input.Placeholder = "New task title..."
			m.input.Focus()
			m.resize()
			return m, textinput.Blink
		case "e":
			t, ok := m.selected()
			if !ok || !m.guard(t) {
				return m, nil
			}
			m.mode = modeEdit
			m.editID = t.ID
			m.input.SetValue(t.Title)
			m.input.CursorEnd()
			m.input.Placeholder = "Edit task title..."
			m.input.Focus()
			m.resize()
			return m, textinput.Blink
		case "d":
			t, ok := m.selected()
			if !ok || !m.guard(t) {
				return m, nil
			}
			return m, m.run("deleted", func(ctx context.Context) error {
				return m.board.Delete(ctx, t.ID)
			})
		case "r":
			return m, m.run("resynced", m.board.Resync)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			title := model.NormalizeTitle(m.input.Value())
			if title == "" {
				m.setStatus(engine.UserMessage(&engine.CommandError{Kind: engine.ErrValidation}), true)
				return m, nil
			}
			mode, id := m.mode, m.editID
			m.closeInput()
			if mode == modeAdd {
				return m, m.run("added", func(ctx context.Context) error {
					_, err := m.board.Create(ctx, title)
					return err
				})
			}
			return m, m.run("updated", func(ctx context.Context) error {
				return m.board.Update(ctx, id, title)
			})
		case "esc":
			m.closeInput()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
	m.resize()
}

func (m *Model) resize() {
	h := m.height - 5
	if m.mode != modeList {
		h -= 3
	}
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

// View renders the board.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.list.View())

	if m.mode != modeList {
		label := "Add task"
		if m.mode == modeEdit {
			label = "Edit task"
		}
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(label + "\n" + m.input.View()))
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render("✖ " + m.status))
		} else {
			b.WriteString(successStyle.Render("✔ " + m.status))
		}
	}
	return panelStyle.Render(b.String())
}
