package common

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hylla/todoembed/internal/app"
	"github.com/hylla/todoembed/internal/domain"
)

// stubRemote serves fixed metadata and tasks to the app service.
type stubRemote struct {
	tasks    []domain.Task
	closeErr error
	closed   []int64
	reopened []int64
}

func (s *stubRemote) ListProjects(context.Context) ([]domain.Project, error) {
	return []domain.Project{{ID: 1, Name: "Inbox", Color: 47}}, nil
}

func (s *stubRemote) ListSections(context.Context) ([]domain.Section, error) {
	return nil, nil
}

func (s *stubRemote) ListLabels(context.Context) ([]domain.Label, error) {
	return []domain.Label{{ID: 7, Name: "home"}}, nil
}

func (s *stubRemote) FetchTasks(context.Context, app.Query) ([]domain.Task, error) {
	return append([]domain.Task(nil), s.tasks...), nil
}

func (s *stubRemote) CloseTask(_ context.Context, id int64) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = append(s.closed, id)
	return nil
}

func (s *stubRemote) ReopenTask(_ context.Context, id int64) error {
	s.reopened = append(s.reopened, id)
	return nil
}

const inboxConfig = `{"mode":"project","project":{"query":"Inbox"}}`

// newTestAdapter builds an adapter over an app service backed by remote.
func newTestAdapter(remote app.RemoteTaskService) *AppServiceAdapter {
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(remote, nil, nil, func() time.Time { return now }, app.ServiceConfig{Location: time.UTC}, nil)
	return NewAppServiceAdapter(svc, nil)
}

func inboxRemote() *stubRemote {
	return &stubRemote{tasks: []domain.Task{
		{ID: 10, Content: "Water plants", ProjectID: 1, Order: 1, Priority: 1},
		{ID: 11, Content: "Buy soil", ProjectID: 1, Order: 2, Priority: 4, LabelIDs: []int64{7}},
	}}
}

// TestAdapterRenderViewFormats verifies json, html and markdown results for one config.
func TestAdapterRenderViewFormats(t *testing.T) {
	adapter := newTestAdapter(inboxRemote())
	ctx := context.Background()

	got, err := adapter.RenderView(ctx, RenderViewRequest{Config: json.RawMessage(inboxConfig)})
	if err != nil {
		t.Fatalf("RenderView(json) error = %v", err)
	}
	if got.Format != FormatJSON || got.Error != nil || got.View == nil {
		t.Fatalf("unexpected json result %#v", got)
	}
	if tasks := got.View.Groups[0].Tasks; len(tasks) != 2 || tasks[0].Task.ID != 10 {
		t.Fatalf("unexpected tasks %#v", got.View.Groups)
	}

	quoted, _ := json.Marshal(inboxConfig)
	got, err = adapter.RenderView(ctx, RenderViewRequest{Config: quoted, Format: "HTML"})
	if err != nil {
		t.Fatalf("RenderView(html) error = %v", err)
	}
	if got.Format != FormatHTML || !strings.Contains(got.HTML, `id="11"`) || got.View != nil {
		t.Fatalf("unexpected html result %#v", got)
	}

	got, err = adapter.RenderView(ctx, RenderViewRequest{Config: json.RawMessage(inboxConfig), Format: FormatMarkdown})
	if err != nil {
		t.Fatalf("RenderView(markdown) error = %v", err)
	}
	if !strings.Contains(got.Content, "- [ ] Buy soil `P1` _Inbox @home_") {
		t.Fatalf("unexpected markdown %q", got.Content)
	}
}

// TestAdapterRenderViewInBandErrors verifies render failures are returned in the result.
func TestAdapterRenderViewInBandErrors(t *testing.T) {
	adapter := newTestAdapter(inboxRemote())
	got, err := adapter.RenderView(context.Background(), RenderViewRequest{
		Config: json.RawMessage(`{"mode":"label","label":{"query":"nope"}}`),
		Format: FormatHTML,
	})
	if err != nil {
		t.Fatalf("RenderView() error = %v", err)
	}
	if got.Error == nil || got.Error.Code != "INVALID_LABEL" {
		t.Fatalf("expected INVALID_LABEL failure, got %#v", got.Error)
	}
	if !strings.Contains(got.HTML, `class="todoist-error"`) {
		t.Fatalf("expected error box, got %q", got.HTML)
	}

	noToken := NewAppServiceAdapter(app.NewService(nil, nil, nil, nil, app.ServiceConfig{}, nil), nil)
	got, err = noToken.RenderView(context.Background(), RenderViewRequest{Config: json.RawMessage(inboxConfig)})
	if err != nil {
		t.Fatalf("RenderView(no token) error = %v", err)
	}
	if got.Error == nil || got.Error.Code != "NO_TOKEN" || got.View != nil {
		t.Fatalf("expected NO_TOKEN failure, got %#v", got)
	}
}

// TestAdapterRenderViewRejectsMalformedRequests verifies transport-level validation.
func TestAdapterRenderViewRejectsMalformedRequests(t *testing.T) {
	adapter := newTestAdapter(inboxRemote())
	cases := []struct {
		name string
		req  RenderViewRequest
		want error
	}{
		{name: "missing config", req: RenderViewRequest{}, want: ErrInvalidRequest},
		{name: "null config", req: RenderViewRequest{Config: json.RawMessage("null")}, want: ErrInvalidRequest},
		{name: "blank string", req: RenderViewRequest{Config: json.RawMessage(`"  "`)}, want: ErrInvalidRequest},
		{name: "bad format", req: RenderViewRequest{Config: json.RawMessage(inboxConfig), Format: "pdf"}, want: ErrUnsupportedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := adapter.RenderView(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("RenderView() error = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestAdapterRenderDocument verifies block summaries and the default html format.
func TestAdapterRenderDocument(t *testing.T) {
	adapter := newTestAdapter(inboxRemote())
	doc := "# Plan\n\n```todoist\n" + inboxConfig + "\n```\n\n```todoist\n{broken\n```\n"

	got, err := adapter.RenderDocument(context.Background(), RenderDocumentRequest{Markdown: doc})
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}
	if got.Format != FormatHTML || !strings.Contains(got.Content, "<h1>Plan</h1>") {
		t.Fatalf("unexpected document %#v", got)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("expected two block summaries, got %#v", got.Blocks)
	}
	if got.Blocks[0].Tasks != 2 || got.Blocks[0].Error != nil {
		t.Fatalf("unexpected first block %#v", got.Blocks[0])
	}
	if got.Blocks[1].Error == nil || got.Blocks[1].Error.Code != "JSON_PARSE_ERROR" {
		t.Fatalf("unexpected second block %#v", got.Blocks[1])
	}

	if _, err := adapter.RenderDocument(context.Background(), RenderDocumentRequest{Markdown: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := adapter.RenderDocument(context.Background(), RenderDocumentRequest{Markdown: doc, Format: FormatJSON}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// TestAdapterSetTaskCompletion verifies close, reopen and error mapping.
func TestAdapterSetTaskCompletion(t *testing.T) {
	remote := inboxRemote()
	adapter := newTestAdapter(remote)
	ctx := context.Background()

	if _, err := adapter.SetTaskCompletion(ctx, TaskCompletionRequest{TaskID: 10, Completed: true}); err != nil {
		t.Fatalf("SetTaskCompletion(close) error = %v", err)
	}
	if _, err := adapter.SetTaskCompletion(ctx, TaskCompletionRequest{TaskID: 10}); err != nil {
		t.Fatalf("SetTaskCompletion(reopen) error = %v", err)
	}
	if len(remote.closed) != 1 || len(remote.reopened) != 1 {
		t.Fatalf("closed = %v reopened = %v", remote.closed, remote.reopened)
	}

	if _, err := adapter.SetTaskCompletion(ctx, TaskCompletionRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	remote.closeErr = &domain.RemoteError{Op: "close task", StatusCode: 500}
	_, err := adapter.SetTaskCompletion(ctx, TaskCompletionRequest{TaskID: 10, Completed: true})
	if !errors.Is(err, ErrRemoteFailure) || !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected remote failure, got %v", err)
	}
}

// TestAdapterMetadata verifies cache stats before and after an explicit refresh.
func TestAdapterMetadata(t *testing.T) {
	adapter := newTestAdapter(inboxRemote())
	ctx := context.Background()

	before, err := adapter.Metadata(ctx)
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if before.Projects != 0 || !before.HasToken {
		t.Fatalf("unexpected initial summary %#v", before)
	}
	after, err := adapter.RefreshMetadata(ctx)
	if err != nil {
		t.Fatalf("RefreshMetadata() error = %v", err)
	}
	if after.Projects != 1 || after.Labels != 1 || after.Refreshes != 1 || after.RefreshedAt.IsZero() {
		t.Fatalf("unexpected refreshed summary %#v", after)
	}

	noToken := NewAppServiceAdapter(app.NewService(nil, nil, nil, nil, app.ServiceConfig{}, nil), nil)
	if _, err := noToken.RefreshMetadata(ctx); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	summary, err := noToken.Metadata(ctx)
	if err != nil || summary.HasToken {
		t.Fatalf("unexpected no-token summary %#v, %v", summary, err)
	}
}

// TestNilAdapter verifies an unconfigured adapter reports unavailability.
func TestNilAdapter(t *testing.T) {
	var adapter *AppServiceAdapter
	if _, err := adapter.RenderView(context.Background(), RenderViewRequest{}); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if _, err := adapter.Metadata(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
