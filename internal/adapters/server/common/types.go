// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hylla/todoembed/internal/domain"
)

// FormatJSON selects the organized view as JSON.
const FormatJSON = "json"

// FormatHTML selects widget or document HTML.
const FormatHTML = "html"

// FormatTerminal selects ANSI-styled terminal text.
const FormatTerminal = "terminal"

// FormatMarkdown selects markdown with each embedded block substituted.
const FormatMarkdown = "markdown"

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnsupportedFormat reports an output format the operation does not produce.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrServiceUnavailable reports a surface whose backing service is not configured.
var ErrServiceUnavailable = errors.New("service unavailable")

// RenderViewRequest carries one embedded config block.
// Config holds either the config object or a JSON string containing the block text.
type RenderViewRequest struct {
	Config json.RawMessage `json:"config"`
	Format string          `json:"format,omitempty"`
	Width  int             `json:"width,omitempty"`
}

// RenderViewResult is the outcome of one render invocation.
// Render failures are reported in-band through Error, never as a transport failure.
type RenderViewResult struct {
	Format  string                `json:"format"`
	View    *domain.OrganizedView `json:"view,omitempty"`
	HTML    string                `json:"html,omitempty"`
	Content string                `json:"content,omitempty"`
	Error   *RenderFailure        `json:"error,omitempty"`
}

// RenderFailure describes why one block could not be rendered.
type RenderFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// RenderDocumentRequest carries one markdown document.
type RenderDocumentRequest struct {
	Markdown string `json:"markdown"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
}

// BlockSummary reports the outcome of one embedded block in a document.
type BlockSummary struct {
	Index int            `json:"index"`
	Tasks int            `json:"tasks"`
	Empty bool           `json:"empty,omitempty"`
	Error *RenderFailure `json:"error,omitempty"`
}

// RenderDocumentResult is one rendered document.
type RenderDocumentResult struct {
	Format  string         `json:"format"`
	Content string         `json:"content"`
	Blocks  []BlockSummary `json:"blocks"`
}

// TaskCompletionRequest closes or reopens one task.
type TaskCompletionRequest struct {
	TaskID    int64 `json:"task_id"`
	Completed bool  `json:"completed"`
}

// TaskCompletionResult acknowledges one completion change.
type TaskCompletionResult struct {
	TaskID    int64 `json:"task_id"`
	Completed bool  `json:"completed"`
}

// MetadataSummary reports metadata cache state.
type MetadataSummary struct {
	Projects    int       `json:"projects"`
	Sections    int       `json:"sections"`
	Labels      int       `json:"labels"`
	Refreshes   int       `json:"refreshes"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
	HasToken    bool      `json:"has_token"`
}

// ViewService renders embedded config blocks and documents.
type ViewService interface {
	RenderView(context.Context, RenderViewRequest) (RenderViewResult, error)
	RenderDocument(context.Context, RenderDocumentRequest) (RenderDocumentResult, error)
}

// TaskService changes task completion state.
type TaskService interface {
	SetTaskCompletion(context.Context, TaskCompletionRequest) (TaskCompletionResult, error)
}

// MetadataService reads and refreshes the metadata cache.
type MetadataService interface {
	Metadata(context.Context) (MetadataSummary, error)
	RefreshMetadata(context.Context) (MetadataSummary, error)
}

// Service is the full transport-facing surface.
type Service interface {
	ViewService
	TaskService
	MetadataService
}

// FailureFrom maps one render error onto its widget code and user message.
func FailureFrom(err error) *RenderFailure {
	if err == nil {
		return nil
	}
	return &RenderFailure{
		Code:    domain.ErrorCode(err),
		Message: domain.UserMessage(err),
		Detail:  err.Error(),
	}
}
