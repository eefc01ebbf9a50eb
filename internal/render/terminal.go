package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/todoembed/internal/domain"
)

// minWrapWidth is the narrowest wrap width handed to glamour.
const minWrapWidth = 24

// ViewMarkdown renders view as a markdown task list with one heading per visible group.
func ViewMarkdown(view domain.OrganizedView) string {
	if view.Empty {
		return "_" + EmptyMessage + "_\n"
	}
	var b strings.Builder
	for _, group := range view.Groups {
		if !group.Visible() {
			continue
		}
		if !group.Ungrouped {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "## %s\n\n", group.Label)
		}
		writeMarkdownNodes(&b, group.Tasks, 0)
	}
	return b.String()
}

// ErrorMarkdown renders the user-visible message for err as a quote block.
func ErrorMarkdown(err error) string {
	return "> **todoist:** " + domain.UserMessage(err) + "\n"
}

func writeMarkdownNodes(b *strings.Builder, nodes []domain.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, node := range nodes {
		box := " "
		if node.Task.Completed {
			box = "x"
		}
		fmt.Fprintf(b, "%s- [%s] %s", indent, box, strings.TrimSpace(node.Task.Content))
		if mark := priorityMark(node.Task.Priority); mark != "" {
			fmt.Fprintf(b, " `%s`", mark)
		}
		if !node.Task.HasParent() {
			if meta := nodeMeta(node); meta != "" {
				fmt.Fprintf(b, " _%s_", meta)
			}
		}
		b.WriteString("\n")
		writeMarkdownNodes(b, node.Children, depth+1)
	}
}

// priorityMark labels urgent tasks; the lowest priority carries no mark.
func priorityMark(priority int) string {
	if priority <= domain.PriorityLowest {
		return ""
	}
	return domain.PriorityBucket(priority)
}

// nodeMeta renders "Project / Section @label" for top-level tasks.
func nodeMeta(node domain.Node) string {
	parts := make([]string, 0, 2+len(node.Labels))
	if node.Project != nil {
		location := node.Project.Name
		if node.Section != nil {
			location += " / " + node.Section.Name
		}
		parts = append(parts, location)
	}
	for _, label := range node.Labels {
		parts = append(parts, "@"+label.Name)
	}
	return strings.Join(parts, " ")
}

// Terminal renders markdown for terminals and recreates the glamour renderer when the wrap width changes.
type Terminal struct {
	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewTerminal constructs a terminal renderer.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Render converts markdown into ANSI-styled terminal text wrapped at width.
// The input is returned unchanged when glamour cannot render it.
func (t *Terminal) Render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, minWrapWidth)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.renderer == nil || t.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		t.renderer = renderer
		t.width = wrapWidth
	}

	rendered, err := t.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// RenderView renders one organized view for a terminal.
func (t *Terminal) RenderView(view domain.OrganizedView, width int) string {
	return t.Render(ViewMarkdown(view), width)
}
