// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/todoembed/internal/adapters/server/common"
)

// maxRequestBodyBytes limits request payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.Service
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over service.
func NewHandler(service common.Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	switch path {
	case "views/render":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRenderView(w, r)
		return
	case "documents/render":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRenderDocument(w, r)
		return
	case "metadata":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleMetadata(w, r)
		return
	case "metadata/refresh":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRefreshMetadata(w, r)
		return
	}

	taskID, completed, ok := resolveTaskAction(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.handleTaskCompletion(w, r, taskID, completed)
}

// handleRenderView serves POST `/views/render`. The body is the raw config block text.
func (h *Handler) handleRenderView(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	body, err := readBody(r.Context(), w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	width, err := widthParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	config, err := json.Marshal(string(body))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	result, err := h.service.RenderView(r.Context(), common.RenderViewRequest{
		Config: config,
		Format: r.URL.Query().Get("format"),
		Width:  width,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	switch result.Format {
	case common.FormatHTML:
		writeText(w, "text/html; charset=utf-8", result.HTML)
	case common.FormatMarkdown:
		writeText(w, "text/markdown; charset=utf-8", result.Content)
	case common.FormatTerminal:
		writeText(w, "text/plain; charset=utf-8", result.Content)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// handleRenderDocument serves POST `/documents/render`. The body is the markdown document.
// Clients that accept application/json receive the block summaries with the content.
func (h *Handler) handleRenderDocument(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	body, err := readBody(r.Context(), w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	width, err := widthParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	result, err := h.service.RenderDocument(r.Context(), common.RenderDocumentRequest{
		Markdown: string(body),
		Format:   r.URL.Query().Get("format"),
		Width:    width,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, result)
		return
	}
	w.Header().Set("X-Todoist-Blocks", strconv.Itoa(len(result.Blocks)))
	switch result.Format {
	case common.FormatHTML:
		writeText(w, "text/html; charset=utf-8", result.Content)
	case common.FormatMarkdown:
		writeText(w, "text/markdown; charset=utf-8", result.Content)
	default:
		writeText(w, "text/plain; charset=utf-8", result.Content)
	}
}

// handleTaskCompletion serves POST `/tasks/{id}/close` and `/tasks/{id}/reopen`.
func (h *Handler) handleTaskCompletion(w http.ResponseWriter, r *http.Request, taskID int64, completed bool) {
	if !h.ready(w) {
		return
	}
	result, err := h.service.SetTaskCompletion(r.Context(), common.TaskCompletionRequest{
		TaskID:    taskID,
		Completed: completed,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMetadata serves GET `/metadata`.
func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	summary, err := h.service.Metadata(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRefreshMetadata serves POST `/metadata/refresh`.
func (h *Handler) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	summary, err := h.service.RefreshMetadata(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ready writes a 503 and reports false when no service is configured.
func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service != nil {
		return true
	}
	writeJSONError(w, http.StatusServiceUnavailable, APIError{
		Code:    "service_unavailable",
		Message: "render service is not configured",
	})
	return false
}

// resolveTaskAction parses `tasks/{id}/close|reopen`.
func resolveTaskAction(path string) (int64, bool, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "tasks" {
		return 0, false, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false, false
	}
	switch parts[2] {
	case "close":
		return id, true, true
	case "reopen":
		return id, false, true
	default:
		return 0, false, false
	}
}

// widthParam parses the optional terminal wrap width.
func widthParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("width"))
	if raw == "" {
		return 0, nil
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width < 0 {
		return 0, fmt.Errorf("width %q must be a non-negative integer: %w", raw, common.ErrInvalidRequest)
	}
	return width, nil
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrUnsupportedFormat):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "unsupported_format",
			Message: err.Error(),
			Hint:    "Use one of json, html, markdown or terminal.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
			Hint:    "Set a Todoist API token with --token, TODOIST_TOKEN or the [todoist] config section.",
		})
	case errors.Is(err, common.ErrRemoteFailure):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "remote_error",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// writeText writes one 200 response with the given content type.
func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// readBody reads one required request body within maxRequestBodyBytes.
func readBody(ctx context.Context, w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, fmt.Errorf("request body is required: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return body, nil
	}
}
