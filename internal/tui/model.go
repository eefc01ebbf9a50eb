package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/todoembed/internal/domain"
	"github.com/hylla/todoembed/internal/render"
)

// Service is the slice of the app service the viewer drives.
type Service interface {
	Render(context.Context, []byte) (domain.OrganizedView, error)
	SetTaskCompletion(context.Context, int64, bool) error
}

// Model is the interactive viewer for one embedded task-list config.
type Model struct {
	svc    Service
	config []byte
	title  string

	keys keyMap
	help help.Model

	view   domain.OrganizedView
	err    error
	loaded bool

	ready  bool
	width  int
	height int

	cursor    int
	collapsed map[int64]bool
	status    string

	copyText func(string) error
}

// renderedMsg carries one render pipeline result.
type renderedMsg struct {
	view domain.OrganizedView
	err  error
}

// completionMsg reports the remote outcome of an optimistic toggle.
type completionMsg struct {
	taskID    int64
	completed bool
	err       error
}

type copiedMsg struct {
	err error
}

// rowKind distinguishes group headings from task rows.
type rowKind int

const (
	rowHeading rowKind = iota
	rowTask
)

// row is one rendered line of the flattened view.
type row struct {
	kind  rowKind
	label string
	node  domain.Node
	depth int
}

// NewModel constructs a viewer over config, the raw JSON block text.
func NewModel(svc Service, config []byte, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:       svc,
		config:    append([]byte(nil), config...),
		title:     "todoembed",
		keys:      newKeyMap(),
		help:      h,
		collapsed: map[int64]bool{},
		status:    "loading...",
		copyText:  clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadView
}

func (m Model) loadView() tea.Msg {
	if m.svc == nil {
		return renderedMsg{err: fmt.Errorf("viewer has no service")}
	}
	view, err := m.svc.Render(context.Background(), m.config)
	return renderedMsg{view: view, err: err}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case renderedMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err != nil {
			m.view = domain.OrganizedView{}
			m.status = "render failed"
			return m, nil
		}
		m.view = msg.view
		m.clampCursor()
		m.status = fmt.Sprintf("%d tasks", m.view.TaskCount())
		return m, nil

	case completionMsg:
		if msg.err != nil {
			m.view.SetCompleted(msg.taskID, !msg.completed)
			m.status = "update failed: " + domain.UserMessage(msg.err)
			return m, nil
		}
		if msg.completed {
			m.status = fmt.Sprintf("completed task %d", msg.taskID)
		} else {
			m.status = fmt.Sprintf("reopened task %d", msg.taskID)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied widget html"
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.cursor++
		m.clampCursor()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.cursor--
		m.clampCursor()
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing..."
		return m, m.loadView
	case key.Matches(msg, m.keys.copy):
		return m, m.copyWidget()
	case key.Matches(msg, m.keys.expand):
		node, ok := m.selectedNode()
		if !ok || len(node.Children) == 0 {
			return m, nil
		}
		m.collapsed[node.Task.ID] = !m.collapsed[node.Task.ID]
		m.clampCursor()
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m.toggleSelected()
	}
	return m, nil
}

// toggleSelected flips the selected task locally and confirms it remotely.
func (m Model) toggleSelected() (tea.Model, tea.Cmd) {
	node, ok := m.selectedNode()
	if !ok || m.svc == nil {
		return m, nil
	}
	id := node.Task.ID
	completed := !node.Task.Completed
	m.view.SetCompleted(id, completed)
	m.status = "saving..."
	svc := m.svc
	return m, func() tea.Msg {
		err := svc.SetTaskCompletion(context.Background(), id, completed)
		return completionMsg{taskID: id, completed: completed, err: err}
	}
}

func (m Model) copyWidget() tea.Cmd {
	view, viewErr, write := m.view, m.err, m.copyText
	return func() tea.Msg {
		markup, err := render.WidgetHTML(view, viewErr)
		if err != nil {
			return copiedMsg{err: err}
		}
		return copiedMsg{err: write(markup)}
	}
}

// rows flattens the view into headings and the task rows left visible by collapse state.
func (m Model) rows() []row {
	out := []row{}
	for _, group := range m.view.Groups {
		if !group.Visible() {
			continue
		}
		if !group.Ungrouped {
			out = append(out, row{kind: rowHeading, label: group.Label})
		}
		out = m.appendNodes(out, group.Tasks, 0)
	}
	return out
}

func (m Model) appendNodes(out []row, nodes []domain.Node, depth int) []row {
	for _, node := range nodes {
		out = append(out, row{kind: rowTask, node: node, depth: depth})
		if len(node.Children) > 0 && !m.collapsed[node.Task.ID] {
			out = m.appendNodes(out, node.Children, depth+1)
		}
	}
	return out
}

func (m Model) taskRows() []row {
	all := m.rows()
	out := make([]row, 0, len(all))
	for _, r := range all {
		if r.kind == rowTask {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) selectedNode() (domain.Node, bool) {
	tasks := m.taskRows()
	if m.cursor < 0 || m.cursor >= len(tasks) {
		return domain.Node{}, false
	}
	return tasks[m.cursor].node, true
}

func (m *Model) clampCursor() {
	count := len(m.taskRows())
	m.cursor = clamp(m.cursor, 0, max(0, count-1))
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.screen())
	v.AltScreen = true
	return v
}

// screen renders the full frame: title, body, status and help.
func (m Model) screen() string {
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{titleStyle.Render(m.title), ""}
	switch {
	case !m.loaded:
		sections = append(sections, "loading...")
	case m.err != nil:
		sections = append(sections, lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(domain.UserMessage(m.err)))
	case m.view.Empty:
		sections = append(sections, render.EmptyMessage)
	default:
		sections = append(sections, m.renderRows()...)
	}
	if strings.TrimSpace(m.status) != "" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.ready && m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}

	return content + "\n" + helpLine
}

func (m Model) renderRows() []string {
	accent := lipgloss.Color("62")
	headingStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true)

	lines := []string{}
	taskIndex := 0
	for _, r := range m.rows() {
		if r.kind == rowHeading {
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, headingStyle.Render(r.label))
			continue
		}
		line := taskLine(r, m.collapsed[r.node.Task.ID])
		switch {
		case taskIndex == m.cursor:
			line = selectedStyle.Render("› " + line)
		case r.node.Task.Completed:
			line = "  " + doneStyle.Render(line)
		default:
			line = "  " + line
		}
		lines = append(lines, line)
		taskIndex++
	}
	return lines
}

// taskLine renders one task without selection styling.
func taskLine(r row, collapsed bool) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", r.depth))
	switch {
	case len(r.node.Children) == 0:
		b.WriteString("  ")
	case collapsed:
		b.WriteString("▸ ")
	default:
		b.WriteString("▾ ")
	}
	if r.node.Task.Completed {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	if bucket := domain.PriorityBucket(r.node.Task.Priority); bucket != "P4" {
		b.WriteString(bucket + " ")
	}
	b.WriteString(r.node.Task.Content)
	if r.node.Task.Due != nil && r.node.Task.Due.Date != "" {
		b.WriteString("  (" + r.node.Task.Due.Date + ")")
	}
	for _, label := range r.node.Labels {
		b.WriteString(" @" + label.Name)
	}
	return b.String()
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fitLines truncates or pads content to maxLines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}
