// Package ui renders the todo widget in a terminal.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tomlord1122/todo-widget/internal/client"
)

type changedMsg struct{}

type loadedMsg struct {
	err error
}

// Model is the bubbletea model over a client.Controller.
type Model struct {
	ctrl     *client.Controller
	cursor   int
	adding   bool
	input    string
	dragging bool
	loadErr  error
}

func NewModel(ctrl *client.Controller) *Model {
	return &Model{ctrl: ctrl}
}

// Run shows the widget until the user quits. Requests still queued are
// sent before it returns.
func Run(ctx context.Context, backend client.Backend, opts client.Options) error {
	var program atomic.Pointer[tea.Program]
	opts.OnChange = notifyProgram(&program, opts.OnChange)

	ctrl := client.NewController(backend, opts)
	defer ctrl.Close()

	return runProgram(ctx, ctrl, &program)
}

// notifyProgram returns an OnChange hook that wakes the running program.
// Controller changes are often made from inside Update, so the message is
// sent from its own goroutine; Send blocks until the event loop reads it.
func notifyProgram(program *atomic.Pointer[tea.Program], next func()) func() {
	return func() {
		if p := program.Load(); p != nil {
			go p.Send(changedMsg{})
		}
		if next != nil {
			next()
		}
	}
}

func runProgram(ctx context.Context, ctrl *client.Controller, program *atomic.Pointer[tea.Program], opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctrl), opts...)
	program.Store(p)
	defer program.Store(nil)

	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.reload()
}

func (m *Model) reload() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return loadedMsg{err: ctrl.Load(context.Background())}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loadErr = msg.err
		m.clampCursor()
		return m, nil
	case changedMsg:
		m.clampCursor()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.adding {
		m.handleAdd(msg)
		return m, nil
	}

	row, ok := m.current()
	if ok && row.Mode == client.ModeEditing {
		m.handleEdit(row, msg)
		return m, nil
	}
	if ok && row.Mode == client.ModeDeleting {
		switch msg.String() {
		case "y":
			m.ctrl.ConfirmDelete(row.Key)
			m.clampCursor()
		case "n", "esc":
			m.ctrl.CancelDelete(row.Key)
		}
		return m, nil
	}

	key := msg.String()
	if m.dragging && key != "J" && key != "K" {
		m.ctrl.Drop()
		m.dragging = false
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "J", "K":
		if ok {
			delta := 1
			if key == "K" {
				delta = -1
			}
			if m.ctrl.Move(row.Key, delta) {
				m.dragging = true
				m.cursor += delta
				m.clampCursor()
			}
		}
	case "a":
		m.adding = true
		m.input = ""
	case "e":
		if ok {
			m.ctrl.BeginEdit(row.Key)
		}
	case "d":
		if ok {
			m.ctrl.BeginDelete(row.Key)
		}
	case " ":
		if ok {
			m.ctrl.Toggle(row.Key)
			m.clampCursor()
		}
	case "c":
		m.ctrl.RemoveCompleted()
		m.clampCursor()
	case "r":
		return m, m.reload()
	}
	return m, nil
}

func (m *Model) handleAdd(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		if _, ok := m.ctrl.Add(m.input); ok {
			m.cursor = 0
		}
		m.adding = false
		m.input = ""
	case tea.KeyEsc:
		m.adding = false
		m.input = ""
	case tea.KeyBackspace:
		m.input = dropLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
}

func (m *Model) handleEdit(row client.Row, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		m.ctrl.SaveEdit(row.Key)
	case tea.KeyEsc:
		m.ctrl.CancelEdit(row.Key)
	case tea.KeyBackspace:
		m.ctrl.SetDraft(row.Key, dropLastRune(row.Draft))
	case tea.KeySpace:
		m.ctrl.SetDraft(row.Key, row.Draft+" ")
	case tea.KeyRunes:
		m.ctrl.SetDraft(row.Key, row.Draft+string(msg.Runes))
	}
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

func (m *Model) current() (client.Row, bool) {
	rows := m.ctrl.Snapshot()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return client.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Snapshot())
	m.cursor = min(m.cursor, n-1)
	m.cursor = max(m.cursor, 0)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString("Todos\n\n")

	if m.loadErr != nil {
		fmt.Fprintf(&b, "  could not load todos: %v\n\n", m.loadErr)
	}

	rows := m.ctrl.Snapshot()
	if len(rows) == 0 {
		b.WriteString("  nothing to do\n")
	}
	for i, row := range rows {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		check := "[ ]"
		if row.Done {
			check = "[x]"
		}

		switch row.Mode {
		case client.ModeEditing:
			fmt.Fprintf(&b, "%s%s %s_   (enter save, esc cancel)\n", cursor, check, row.Draft)
		case client.ModeDeleting:
			fmt.Fprintf(&b, "%s%s %s   delete? (y/n)\n", cursor, check, row.Content)
		default:
			fmt.Fprintf(&b, "%s%s %s\n", cursor, check, row.Content)
		}
	}

	if m.adding {
		fmt.Fprintf(&b, "\n  new: %s_\n", m.input)
	}

	b.WriteString("\n")
	if status := m.ctrl.Status(); status != client.StatusIdle {
		b.WriteString("  " + string(status) + "\n")
	}
	b.WriteString("  a add  e edit  d delete  space done  J/K move  c clear done  r reload  q quit\n")
	return b.String()
}
