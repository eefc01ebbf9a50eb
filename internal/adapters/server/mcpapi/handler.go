// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/todoembed/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the render, task and metadata tools.
func NewHandler(cfg Config, service common.Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("render service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerViewTools(mcpSrv, service)
	registerTaskTools(mcpSrv, service)
	registerMetadataTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "todoembed"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerViewTools registers `todoembed.render_view` and `todoembed.render_document`.
func registerViewTools(srv *mcpserver.MCPServer, views common.ViewService) {
	srv.AddTool(
		mcp.NewTool(
			"todoembed.render_view",
			mcp.WithDescription("Render one todoist config block. Render failures are reported in the result's error field."),
			mcp.WithString("config", mcp.Required(), mcp.Description(`Config block text, e.g. {"mode":"project","project":{"query":"Inbox"}}`)),
			mcp.WithString("format", mcp.Description("Output format"), mcp.Enum(common.FormatJSON, common.FormatHTML, common.FormatMarkdown, common.FormatTerminal)),
			mcp.WithNumber("width", mcp.Description("Wrap width for terminal output")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			config, err := req.RequireString("config")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			encoded, err := json.Marshal(config)
			if err != nil {
				return nil, fmt.Errorf("encode render_view config: %w", err)
			}
			view, err := views.RenderView(ctx, common.RenderViewRequest{
				Config: encoded,
				Format: req.GetString("format", ""),
				Width:  req.GetInt("width", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode render_view result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"todoembed.render_document",
			mcp.WithDescription("Render one markdown document, replacing every todoist block with its task list."),
			mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown document text")),
			mcp.WithString("format", mcp.Description("Output format"), mcp.Enum(common.FormatHTML, common.FormatMarkdown, common.FormatTerminal)),
			mcp.WithNumber("width", mcp.Description("Wrap width for terminal output")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			markdown, err := req.RequireString("markdown")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			doc, err := views.RenderDocument(ctx, common.RenderDocumentRequest{
				Markdown: markdown,
				Format:   req.GetString("format", ""),
				Width:    req.GetInt("width", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(doc)
			if err != nil {
				return nil, fmt.Errorf("encode render_document result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTaskTools registers `todoembed.set_task_completion`.
func registerTaskTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"todoembed.set_task_completion",
			mcp.WithDescription("Close or reopen one Todoist task."),
			mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Todoist task id")),
			mcp.WithBoolean("completed", mcp.Required(), mcp.Description("true closes the task, false reopens it")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireInt("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			completed, err := req.RequireBool("completed")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := tasks.SetTaskCompletion(ctx, common.TaskCompletionRequest{
				TaskID:    int64(taskID),
				Completed: completed,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode set_task_completion result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMetadataTools registers `todoembed.metadata` and `todoembed.refresh_metadata`.
func registerMetadataTools(srv *mcpserver.MCPServer, metadata common.MetadataService) {
	srv.AddTool(
		mcp.NewTool(
			"todoembed.metadata",
			mcp.WithDescription("Report cached project, section and label counts."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := metadata.Metadata(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(summary)
			if err != nil {
				return nil, fmt.Errorf("encode metadata result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"todoembed.refresh_metadata",
			mcp.WithDescription("Re-fetch projects, sections and labels from Todoist."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := metadata.RefreshMetadata(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(summary)
			if err != nil {
				return nil, fmt.Errorf("encode refresh_metadata result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrUnsupportedFormat):
		return mcp.NewToolResultError("unsupported_format: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrServiceUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	case errors.Is(err, common.ErrRemoteFailure):
		return mcp.NewToolResultError("remote_error: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
