package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/todoembed/internal/app"
	"github.com/hylla/todoembed/internal/domain"
	"github.com/hylla/todoembed/internal/render"
)

// ErrRemoteFailure reports a failed call to the remote task service.
var ErrRemoteFailure = errors.New("remote task service failed")

// AppServiceAdapter maps transport contracts onto app.Service and the document renderer.
type AppServiceAdapter struct {
	service   *app.Service
	documents *render.Document
	terminal  *render.Terminal
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
// A nil documents renderer is built over service with default options.
func NewAppServiceAdapter(service *app.Service, documents *render.Document) *AppServiceAdapter {
	if documents == nil && service != nil {
		documents = render.NewDocument(service, render.DocumentOptions{})
	}
	return &AppServiceAdapter{
		service:   service,
		documents: documents,
		terminal:  render.NewTerminal(),
	}
}

// RenderView runs one embedded config block through the render pipeline.
// Render failures are carried in the result; only malformed requests return an error.
func (a *AppServiceAdapter) RenderView(ctx context.Context, in RenderViewRequest) (RenderViewResult, error) {
	if a == nil || a.service == nil {
		return RenderViewResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	format, err := normalizeFormat(in.Format, FormatJSON, FormatJSON, FormatHTML, FormatMarkdown, FormatTerminal)
	if err != nil {
		return RenderViewResult{}, err
	}
	raw, err := configBytes(in.Config)
	if err != nil {
		return RenderViewResult{}, err
	}

	view, renderErr := a.service.Render(ctx, raw)
	if renderErr != nil && ctx.Err() != nil {
		return RenderViewResult{}, ctx.Err()
	}

	out := RenderViewResult{Format: format, Error: FailureFrom(renderErr)}
	switch format {
	case FormatJSON:
		if renderErr == nil {
			out.View = &view
		}
	case FormatHTML:
		markup, err := render.WidgetHTML(view, renderErr)
		if err != nil {
			return RenderViewResult{}, fmt.Errorf("render view html: %w", err)
		}
		out.HTML = markup
	case FormatMarkdown:
		out.Content = viewMarkdown(view, renderErr)
	case FormatTerminal:
		out.Content = a.terminal.Render(viewMarkdown(view, renderErr), in.Width)
	}
	return out, nil
}

// RenderDocument renders one markdown document with every todoist block substituted.
func (a *AppServiceAdapter) RenderDocument(ctx context.Context, in RenderDocumentRequest) (RenderDocumentResult, error) {
	if a == nil || a.documents == nil {
		return RenderDocumentResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	format, err := normalizeFormat(in.Format, FormatHTML, FormatHTML, FormatMarkdown, FormatTerminal)
	if err != nil {
		return RenderDocumentResult{}, err
	}
	if strings.TrimSpace(in.Markdown) == "" {
		return RenderDocumentResult{}, fmt.Errorf("markdown is required: %w", ErrInvalidRequest)
	}

	src := []byte(in.Markdown)
	var (
		content string
		blocks  []render.Block
	)
	switch format {
	case FormatHTML:
		var out []byte
		out, blocks, err = a.documents.RenderHTML(ctx, src)
		content = string(out)
	case FormatMarkdown:
		content, blocks, err = a.documents.RenderMarkdown(ctx, src)
	case FormatTerminal:
		content, blocks, err = a.documents.RenderTerminal(ctx, src, in.Width)
	}
	if err != nil {
		return RenderDocumentResult{}, fmt.Errorf("render document: %w", err)
	}
	return RenderDocumentResult{
		Format:  format,
		Content: content,
		Blocks:  summarizeBlocks(blocks),
	}, nil
}

// SetTaskCompletion closes or reopens one task.
func (a *AppServiceAdapter) SetTaskCompletion(ctx context.Context, in TaskCompletionRequest) (TaskCompletionResult, error) {
	if a == nil || a.service == nil {
		return TaskCompletionResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	if in.TaskID <= 0 {
		return TaskCompletionResult{}, fmt.Errorf("task_id must be positive: %w", ErrInvalidRequest)
	}
	if err := a.service.SetTaskCompletion(ctx, in.TaskID, in.Completed); err != nil {
		return TaskCompletionResult{}, mapAppError("set task completion", err)
	}
	return TaskCompletionResult{TaskID: in.TaskID, Completed: in.Completed}, nil
}

// Metadata reports the metadata cache state without contacting the remote service.
func (a *AppServiceAdapter) Metadata(_ context.Context) (MetadataSummary, error) {
	if a == nil || a.service == nil {
		return MetadataSummary{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return metadataSummary(a.service.Cache().Stats(), a.service.HasRemote()), nil
}

// RefreshMetadata re-fetches projects, sections and labels.
func (a *AppServiceAdapter) RefreshMetadata(ctx context.Context) (MetadataSummary, error) {
	if a == nil || a.service == nil {
		return MetadataSummary{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	stats, err := a.service.RefreshMetadata(ctx)
	if err != nil {
		return MetadataSummary{}, mapAppError("refresh metadata", err)
	}
	return metadataSummary(stats, true), nil
}

// configBytes accepts a config object or a JSON string holding the raw block text.
func configBytes(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("config is required: %w", ErrInvalidRequest)
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal([]byte(trimmed), &text); err != nil {
			return nil, fmt.Errorf("decode config string: %w", errors.Join(ErrInvalidRequest, err))
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("config is required: %w", ErrInvalidRequest)
		}
		return []byte(text), nil
	}
	return []byte(trimmed), nil
}

// normalizeFormat lowercases format, applies the fallback and checks it against allowed.
func normalizeFormat(format, fallback string, allowed ...string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return fallback, nil
	}
	for _, candidate := range allowed {
		if format == candidate {
			return format, nil
		}
	}
	return "", fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
}

func viewMarkdown(view domain.OrganizedView, err error) string {
	if err != nil {
		return render.ErrorMarkdown(err)
	}
	return render.ViewMarkdown(view)
}

func summarizeBlocks(blocks []render.Block) []BlockSummary {
	out := make([]BlockSummary, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, BlockSummary{
			Index: block.Index,
			Tasks: block.View.TaskCount(),
			Empty: block.Err == nil && block.View.Empty,
			Error: FailureFrom(block.Err),
		})
	}
	return out
}

func metadataSummary(stats app.MetadataStats, hasToken bool) MetadataSummary {
	return MetadataSummary{
		Projects:    stats.Projects,
		Sections:    stats.Sections,
		Labels:      stats.Labels,
		Refreshes:   stats.Refreshes,
		RefreshedAt: stats.RefreshedAt,
		HasToken:    hasToken,
	}
}

// mapAppError maps app and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, domain.ErrNoToken):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrServiceUnavailable, err))
	case errors.Is(err, domain.ErrRemote):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRemoteFailure, err))
	case domain.KindOf(err) != "":
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
