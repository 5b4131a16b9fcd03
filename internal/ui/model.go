// Package ui is the terminal view of tracked sessions.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/ccbeacon/ccbeacon/internal/logging"
	"github.com/ccbeacon/ccbeacon/internal/session"
)

var uiLog = logging.ForComponent(logging.CompUI)

const refreshInterval = time.Second

// Engine is what the view needs from the session engine.
type Engine interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Subscribe() (<-chan struct{}, func())
	Forget(ctx context.Context, id string) error
	Focus(ctx context.Context, id string, f session.Focuser) error
}

type snapshotMsg struct {
	snap session.Snapshot
	err  error
}

type changedMsg struct{}

type tickMsg time.Time

type actionMsg struct {
	status string
	err    error
}

// Model renders the session list. It re-reads the engine on every change
// notification and once a second so idle durations stay current.
type Model struct {
	ctx     context.Context
	engine  Engine
	focuser session.Focuser
	changes <-chan struct{}

	snap    session.Snapshot
	visible []session.View
	cursor  int

	filter    textinput.Model
	filtering bool
	keys      keyMap

	status string
	err    error
	width  int
	height int
}

// New builds a model. changes is normally the channel from engine.Subscribe.
func New(ctx context.Context, engine Engine, focuser session.Focuser, changes <-chan struct{}) Model {
	ti := textinput.New()
	ti.Placeholder = "filter by path or id"
	ti.Prompt = "/ "
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		ctx:     ctx,
		engine:  engine,
		focuser: focuser,
		changes: changes,
		filter:  ti,
		keys:    defaultKeyMap(),
	}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, engine Engine, focuser session.Focuser) error {
	changes, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(New(ctx, engine, focuser, changes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot(), m.waitForChange(), tick())
}

func (m Model) loadSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.engine.Snapshot(m.ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case _, ok := <-m.changes:
			if !ok {
				return nil
			}
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, session.ErrEngineStopped) {
				return m, tea.Quit
			}
			return m, nil
		}
		m.err = nil
		m.snap = msg.snap
		m.applyFilter()
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.loadSnapshot(), m.waitForChange())

	case tickMsg:
		return m, tea.Batch(m.loadSnapshot(), tick())

	case actionMsg:
		m.status, m.err = msg.status, msg.err
		return m, m.loadSnapshot()

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Clear):
		m.filter.SetValue("")
		m.status = ""
		m.applyFilter()
	case key.Matches(msg, m.keys.Focus):
		if v, ok := m.selected(); ok {
			return m, m.focus(v.ID)
		}
	case key.Matches(msg, m.keys.Forget):
		if v, ok := m.selected(); ok {
			return m, m.forget(v.ID)
		}
	}
	return m, nil
}

func (m Model) focus(id string) tea.Cmd {
	return func() tea.Msg {
		if m.focuser == nil {
			return actionMsg{err: errors.New("no focus command configured")}
		}
		if err := m.engine.Focus(m.ctx, id, m.focuser); err != nil {
			uiLog.Debug("focus_failed", slog.String("session", id), slog.String("error", err.Error()))
			return actionMsg{err: fmt.Errorf("focus %s: %w", id, err)}
		}
		return actionMsg{status: "focused " + id}
	}
}

func (m Model) forget(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.engine.Forget(m.ctx, id); err != nil {
			return actionMsg{err: fmt.Errorf("forget %s: %w", id, err)}
		}
		return actionMsg{status: "forgot " + id}
	}
}

func (m Model) selected() (session.View, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return session.View{}, false
	}
	return m.visible[m.cursor], true
}

// viewSource lets fuzzy match over cwd and id.
type viewSource []session.View

func (s viewSource) String(i int) string { return s[i].Cwd + " " + s[i].ID }
func (s viewSource) Len() int            { return len(s) }

// applyFilter recomputes the visible rows. The snapshot order is kept so
// needs-input sessions stay on top.
func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = m.snap.Sessions
	} else {
		matches := fuzzy.FindFrom(query, viewSource(m.snap.Sessions))
		keep := make(map[int]bool, len(matches))
		for _, match := range matches {
			keep[match.Index] = true
		}
		m.visible = m.visible[:0:0]
		for i, v := range m.snap.Sessions {
			if keep[i] {
				m.visible = append(m.visible, v)
			}
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s ccbeacon", m.snap.Indicator)))
	b.WriteString(DimStyle.Render(m.snap.Tooltip))
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(SearchBoxStyle.Render(m.filter.View()))
		b.WriteString("\n")
	}

	if len(m.visible) == 0 {
		if len(m.snap.Sessions) == 0 {
			b.WriteString(ItemStyle.Render(DimStyle.Render("no sessions")))
		} else {
			b.WriteString(ItemStyle.Render(DimStyle.Render("no matches")))
		}
		b.WriteString("\n")
	}
	for i, v := range m.visible {
		line := v.Title
		if i == m.cursor {
			line = SelectedStyle.Render(line)
		} else if v.NeedsInput() {
			line = NeedsInputStyle.Render(line)
		} else {
			line = WorkingStyle.Render(line)
		}
		b.WriteString(ItemStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}

	var help []string
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(HelpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}
