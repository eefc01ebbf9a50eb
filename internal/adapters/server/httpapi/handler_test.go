package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hylla/todoembed/internal/adapters/server/common"
	"github.com/hylla/todoembed/internal/domain"
)

// stubService provides deterministic render and task responses for handler tests.
type stubService struct {
	viewResult common.RenderViewResult
	docResult  common.RenderDocumentResult
	metadata   common.MetadataSummary
	err        error

	lastView     common.RenderViewRequest
	lastDocument common.RenderDocumentRequest
	lastTask     common.TaskCompletionRequest
	refreshed    int
}

// RenderView records the request and returns the configured result.
func (s *stubService) RenderView(_ context.Context, req common.RenderViewRequest) (common.RenderViewResult, error) {
	s.lastView = req
	if s.err != nil {
		return common.RenderViewResult{}, s.err
	}
	out := s.viewResult
	if out.Format == "" {
		out.Format = common.FormatJSON
		if req.Format != "" {
			out.Format = req.Format
		}
	}
	return out, nil
}

// RenderDocument records the request and returns the configured result.
func (s *stubService) RenderDocument(_ context.Context, req common.RenderDocumentRequest) (common.RenderDocumentResult, error) {
	s.lastDocument = req
	if s.err != nil {
		return common.RenderDocumentResult{}, s.err
	}
	return s.docResult, nil
}

// SetTaskCompletion records the request and echoes it back.
func (s *stubService) SetTaskCompletion(_ context.Context, req common.TaskCompletionRequest) (common.TaskCompletionResult, error) {
	s.lastTask = req
	if s.err != nil {
		return common.TaskCompletionResult{}, s.err
	}
	return common.TaskCompletionResult(req), nil
}

// Metadata returns the configured summary.
func (s *stubService) Metadata(context.Context) (common.MetadataSummary, error) {
	if s.err != nil {
		return common.MetadataSummary{}, s.err
	}
	return s.metadata, nil
}

// RefreshMetadata counts refreshes and returns the configured summary.
func (s *stubService) RefreshMetadata(context.Context) (common.MetadataSummary, error) {
	s.refreshed++
	if s.err != nil {
		return common.MetadataSummary{}, s.err
	}
	return s.metadata, nil
}

// serve runs one request through a handler over svc.
func serve(svc common.Service, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	NewHandler(svc).ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope decodes one structured error response.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var out ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// TestHandlerRenderViewJSON verifies the raw body is forwarded as a config string.
func TestHandlerRenderViewJSON(t *testing.T) {
	svc := &stubService{viewResult: common.RenderViewResult{
		View: &domain.OrganizedView{Mode: domain.ModeProject, Groups: []domain.Group{}},
	}}
	body := `{"mode":"project","project":{"query":"Inbox"}}`
	rec := serve(svc, http.MethodPost, "/views/render", body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var config string
	if err := json.Unmarshal(svc.lastView.Config, &config); err != nil || config != body {
		t.Fatalf("forwarded config = %s (%v)", svc.lastView.Config, err)
	}
	var got common.RenderViewResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.View == nil || got.View.Mode != domain.ModeProject {
		t.Fatalf("unexpected result %#v", got)
	}
}

// TestHandlerRenderViewHTML verifies html results are written as markup, failures included.
func TestHandlerRenderViewHTML(t *testing.T) {
	svc := &stubService{viewResult: common.RenderViewResult{
		Format: common.FormatHTML,
		HTML:   `<div class="todoist-error">Invalid todoist config</div>`,
		Error:  &common.RenderFailure{Code: "INVALID_CONFIG"},
	}}
	rec := serve(svc, http.MethodPost, "/views/render?format=html&width=60", "{}", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "todoist-error") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if svc.lastView.Format != "html" || svc.lastView.Width != 60 {
		t.Fatalf("unexpected forwarded request %#v", svc.lastView)
	}
}

// TestHandlerRenderDocument verifies raw and JSON document responses.
func TestHandlerRenderDocument(t *testing.T) {
	svc := &stubService{docResult: common.RenderDocumentResult{
		Format:  common.FormatHTML,
		Content: "<h1>Plan</h1>\n",
		Blocks:  []common.BlockSummary{{Index: 0, Tasks: 2}},
	}}

	rec := serve(svc, http.MethodPost, "/documents/render", "# Plan\n", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "<h1>Plan</h1>\n" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Todoist-Blocks") != "1" {
		t.Fatalf("block header = %q", rec.Header().Get("X-Todoist-Blocks"))
	}
	if svc.lastDocument.Markdown != "# Plan\n" {
		t.Fatalf("forwarded markdown = %q", svc.lastDocument.Markdown)
	}

	rec = serve(svc, http.MethodPost, "/documents/render", "# Plan\n", map[string]string{"Accept": "application/json"})
	var got common.RenderDocumentResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].Tasks != 2 {
		t.Fatalf("unexpected json result %#v", got)
	}
}

// TestHandlerTaskCompletion verifies close and reopen routing.
func TestHandlerTaskCompletion(t *testing.T) {
	svc := &stubService{}
	rec := serve(svc, http.MethodPost, "/tasks/42/close", "", nil)
	if rec.Code != http.StatusOK || svc.lastTask.TaskID != 42 || !svc.lastTask.Completed {
		t.Fatalf("close: status %d, request %#v", rec.Code, svc.lastTask)
	}
	rec = serve(svc, http.MethodPost, "/tasks/42/reopen/", "", nil)
	if rec.Code != http.StatusOK || svc.lastTask.Completed {
		t.Fatalf("reopen: status %d, request %#v", rec.Code, svc.lastTask)
	}

	for _, target := range []string{"/tasks/abc/close", "/tasks/0/close", "/tasks/42/delete", "/tasks/42"} {
		if rec := serve(svc, http.MethodPost, target, "", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
	}
}

// TestHandlerMetadata verifies metadata read and refresh.
func TestHandlerMetadata(t *testing.T) {
	svc := &stubService{metadata: common.MetadataSummary{
		Projects:    3,
		RefreshedAt: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC),
		HasToken:    true,
	}}
	rec := serve(svc, http.MethodGet, "/metadata", "", nil)
	var got common.MetadataSummary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Projects != 3 || !got.HasToken {
		t.Fatalf("unexpected summary %#v", got)
	}
	if rec := serve(svc, http.MethodPost, "/metadata/refresh", "", nil); rec.Code != http.StatusOK || svc.refreshed != 1 {
		t.Fatalf("refresh: status %d, refreshed %d", rec.Code, svc.refreshed)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for adapter errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid", err: fmt.Errorf("wrap: %w", common.ErrInvalidRequest), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "format", err: common.ErrUnsupportedFormat, wantStatus: http.StatusBadRequest, wantCode: "unsupported_format"},
		{name: "no token", err: errors.Join(common.ErrServiceUnavailable, domain.ErrNoToken), wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable"},
		{name: "remote", err: errors.Join(common.ErrRemoteFailure, &domain.RemoteError{Op: "close task", StatusCode: 500}), wantStatus: http.StatusBadGateway, wantCode: "remote_error"},
		{name: "other", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(&stubService{err: tc.err}, http.MethodPost, "/tasks/1/close", "", nil)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeEnvelope(t, rec); got.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.wantCode)
			}
		})
	}
}

// TestHandlerRequestValidation verifies method, body and width checks.
func TestHandlerRequestValidation(t *testing.T) {
	svc := &stubService{}

	rec := serve(svc, http.MethodGet, "/views/render", "", nil)
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
	if rec := serve(svc, http.MethodPost, "/metadata", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("metadata POST status = %d", rec.Code)
	}
	if rec := serve(svc, http.MethodPost, "/views/render", "  \n", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d", rec.Code)
	}
	if rec := serve(svc, http.MethodPost, "/documents/render?width=wide", "# x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad width status = %d", rec.Code)
	}
	if rec := serve(svc, http.MethodGet, "/unknown", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
	oversized := strings.Repeat("x", int(maxRequestBodyBytes)+1)
	if rec := serve(svc, http.MethodPost, "/documents/render", oversized, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized body status = %d", rec.Code)
	}
}

// TestHandlerWithoutService verifies the unconfigured handler answers 503.
func TestHandlerWithoutService(t *testing.T) {
	rec := serve(nil, http.MethodGet, "/metadata", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
