package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hylla/todoembed/internal/domain"
)

func parentOf(id int64) *int64 {
	return &id
}

func sampleView() domain.OrganizedView {
	inbox := &domain.Project{ID: 1, Name: "Inbox", Color: 47}
	errands := &domain.Section{ID: 5, Name: "Errands", ProjectID: 1}
	return domain.OrganizedView{
		Mode:    domain.ModeProject,
		GroupBy: domain.GroupByPriority,
		Groups: []domain.Group{
			{Label: "P1", Tasks: []domain.Node{{
				Task:    domain.Task{ID: 10, Content: "Ship <release>", Priority: 4, ProjectID: 1, SectionID: 5},
				Project: inbox,
				Section: errands,
				Labels:  []domain.Label{{ID: 7, Name: "home", Color: 30}},
				Children: []domain.Node{{
					Task:    domain.Task{ID: 11, Content: "Tag build", Completed: true, Priority: 1, ProjectID: 1, ParentID: parentOf(10)},
					Project: inbox,
				}},
			}}},
			{Label: "P2", Tasks: []domain.Node{}},
		},
	}
}

// TestWriteViewMarkup verifies the item and section templates.
func TestWriteViewMarkup(t *testing.T) {
	markup, err := WidgetHTML(sampleView(), nil)
	if err != nil {
		t.Fatalf("WidgetHTML() error = %v", err)
	}
	for _, want := range []string{
		`<div class="todoist-section-name">P1</div>`,
		`<div class="todoist-item-container" id="10" data-completed="false">`,
		`<label for="input-10" data-priority="4"></label>`,
		`<div class="todoist-expand-collapse" data-target="10"></div>`,
		`Ship &lt;release&gt;`,
		`<span>Errands</span>`,
		`<div class="todoist-label" data-color="30">home</div>`,
		`<input class="todoist-checkbox" type="checkbox" id="input-11" checked>`,
		`<div class="todoist-item-children">`,
	} {
		if !strings.Contains(markup, want) {
			t.Fatalf("expected %q in markup:\n%s", want, markup)
		}
	}
	if strings.Contains(markup, ">P2<") {
		t.Fatal("empty labeled group must be skipped")
	}
	if strings.Count(markup, "todoist-content-meta\"></div>") != 1 {
		t.Fatal("expected subtask meta to be empty")
	}
}

// TestWriteViewUngroupedAndEmpty verifies the ungrouped bucket and the empty info box.
func TestWriteViewUngroupedAndEmpty(t *testing.T) {
	view := domain.OrganizedView{Groups: []domain.Group{{Ungrouped: true, Tasks: []domain.Node{{
		Task:    domain.Task{ID: 1, Content: "Solo", ProjectID: 1},
		Project: &domain.Project{ID: 1, Name: "Inbox"},
	}}}}}
	markup, err := WidgetHTML(view, nil)
	if err != nil {
		t.Fatalf("WidgetHTML() error = %v", err)
	}
	if strings.Contains(markup, "todoist-section-container") || !strings.Contains(markup, "Solo") {
		t.Fatalf("unexpected ungrouped markup:\n%s", markup)
	}

	markup, err = WidgetHTML(domain.OrganizedView{Empty: true}, nil)
	if err != nil {
		t.Fatalf("WidgetHTML() error = %v", err)
	}
	if markup != `<div class="todoist-info">Yaay! No tasks</div>` {
		t.Fatalf("unexpected empty markup %q", markup)
	}
}

// TestWidgetHTMLError verifies errors are substituted with their user message.
func TestWidgetHTMLError(t *testing.T) {
	markup, err := WidgetHTML(domain.OrganizedView{}, domain.ErrInvalidLabel)
	if err != nil {
		t.Fatalf("WidgetHTML() error = %v", err)
	}
	want := `<div class="todoist-error">Label specified in the config doesn&#39;t exist or is not created</div>`
	if markup != want {
		t.Fatalf("WidgetHTML() = %q, want %q", markup, want)
	}
}

// TestViewMarkdown verifies the terminal task list.
func TestViewMarkdown(t *testing.T) {
	got := ViewMarkdown(sampleView())
	want := "## P1\n\n- [ ] Ship <release> `P1` _Inbox / Errands @home_\n  - [x] Tag build\n"
	if got != want {
		t.Fatalf("ViewMarkdown() = %q, want %q", got, want)
	}
	if got := ViewMarkdown(domain.OrganizedView{Empty: true}); got != "_Yaay! No tasks_\n" {
		t.Fatalf("empty ViewMarkdown() = %q", got)
	}
	if got := ErrorMarkdown(domain.ErrNoToken); !strings.HasPrefix(got, "> **todoist:** Please set todoist token") {
		t.Fatalf("ErrorMarkdown() = %q", got)
	}
}

// TestTerminalRender verifies glamour output and the empty short-circuit.
func TestTerminalRender(t *testing.T) {
	term := NewTerminal()
	if got := term.Render("   ", 80); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	out := term.RenderView(sampleView(), 10)
	if !strings.Contains(out, "Tag") || !strings.Contains(out, "Ship") {
		t.Fatalf("expected task content in terminal output:\n%s", out)
	}
}

// fakeViews renders configs from a lookup table.
type fakeViews struct {
	mu      sync.Mutex
	configs []string
	views   map[string]domain.OrganizedView
}

func (f *fakeViews) Render(_ context.Context, raw []byte) (domain.OrganizedView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimSpace(string(raw))
	f.configs = append(f.configs, key)
	view, ok := f.views[key]
	if !ok {
		return domain.OrganizedView{}, domain.NewError(domain.KindJSONParse, "", "", errors.New("bad"))
	}
	return view, nil
}

const sampleDocument = "# Notes\n\nIntro text.\n\n```todoist\n{\"mode\":\"project\",\"project\":{\"query\":\"Inbox\"}}\n```\n\n```go\nfmt.Println(\"<hi>\")\n```\n\n```todoist\nnot json\n```\n\nOutro.\n"

func sampleViews() *fakeViews {
	return &fakeViews{views: map[string]domain.OrganizedView{
		`{"mode":"project","project":{"query":"Inbox"}}`: {Groups: []domain.Group{{Ungrouped: true, Tasks: []domain.Node{{
			Task:    domain.Task{ID: 1, Content: "Water plants", ProjectID: 1},
			Project: &domain.Project{ID: 1, Name: "Inbox"},
		}}}}},
	}}
}

// TestDocumentRenderHTML verifies block discovery, widget injection and per-block errors.
func TestDocumentRenderHTML(t *testing.T) {
	views := sampleViews()
	out, blocks, err := NewDocument(views, DocumentOptions{MaxConcurrent: 1}).RenderHTML(context.Background(), []byte(sampleDocument))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	html := string(out)
	if len(views.configs) != 2 || len(blocks) != 2 {
		t.Fatalf("expected two block renders, got %v", views.configs)
	}
	if blocks[0].Err != nil || !errors.Is(blocks[1].Err, domain.ErrJSONParse) {
		t.Fatalf("unexpected block outcomes %v, %v", blocks[0].Err, blocks[1].Err)
	}
	for _, want := range []string{
		"<h1>Notes</h1>",
		`<div class="todoist-runtime-host"><pre><code class="language-todoist">{&quot;mode&quot;`,
		`<div class="todoist-runtime"><div class="todoist-item-container" id="1"`,
		"Water plants",
		`<pre><code class="language-go">fmt.Println(&quot;&lt;hi&gt;&quot;)`,
		`<div class="todoist-error">JSON specified in the config is invalid. Please validate it</div>`,
		"<p>Outro.</p>",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in document:\n%s", want, html)
		}
	}
}

// TestDocumentRenderMarkdown verifies todoist blocks are substituted in place.
func TestDocumentRenderMarkdown(t *testing.T) {
	out, _, err := NewDocument(sampleViews(), DocumentOptions{}).RenderMarkdown(context.Background(), []byte(sampleDocument))
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if strings.Contains(out, "```todoist") || strings.Contains(out, "not json") {
		t.Fatalf("expected todoist blocks to be replaced:\n%s", out)
	}
	for _, want := range []string{"# Notes", "- [ ] Water plants _Inbox_", "```go\nfmt.Println", "> **todoist:** JSON specified", "Outro."} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markdown:\n%s", want, out)
		}
	}
	if strings.Index(out, "Water plants") > strings.Index(out, "fmt.Println") {
		t.Fatal("expected document order to be preserved")
	}
}

// TestDocumentWithoutBlocks verifies plain documents pass through goldmark untouched.
func TestDocumentWithoutBlocks(t *testing.T) {
	views := sampleViews()
	doc := NewDocument(views, DocumentOptions{})
	out, _, err := doc.RenderHTML(context.Background(), []byte("plain *text*\n"))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if string(out) != "<p>plain <em>text</em></p>\n" {
		t.Fatalf("unexpected html %q", out)
	}
	if len(views.configs) != 0 {
		t.Fatal("expected no renders")
	}
}

// TestDocumentCanceledContext verifies cancellation fails the whole document.
func TestDocumentCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewDocument(sampleViews(), DocumentOptions{}).RenderHTML(ctx, []byte(sampleDocument))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
