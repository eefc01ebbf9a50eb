package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/hylla/todoembed/internal/domain"
)

// TestParseViewConfig verifies JSON and shape failures map onto their error kinds.
func TestParseViewConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "valid project block", raw: `{"mode":"project","project":{"query":"Inbox","groupBy":"section"}}`},
		{name: "surrounding whitespace", raw: "\n  {\"mode\":\"filter\",\"filter\":{\"query\":\"today\"}}\n"},
		{name: "unknown mode still parses", raw: `{"mode":"board"}`},
		{name: "malformed json", raw: `{"mode":"project",`, wantErr: domain.ErrJSONParse},
		{name: "empty input", raw: ``, wantErr: domain.ErrJSONParse},
		{name: "array document", raw: `[]`, wantErr: domain.ErrInvalidConfig},
		{name: "missing mode", raw: `{"project":{"query":"Inbox"}}`, wantErr: domain.ErrInvalidConfig},
		{name: "numeric mode", raw: `{"mode":3}`, wantErr: domain.ErrInvalidConfig},
		{name: "block is a string", raw: `{"mode":"project","project":"Inbox"}`, wantErr: domain.ErrInvalidConfig},
		{name: "unknown sort order", raw: `{"mode":"label","label":{"query":"x","sortOrder":"up"}}`, wantErr: domain.ErrInvalidConfig},
		{name: "sort order is case sensitive", raw: `{"mode":"label","label":{"query":"x","sortOrder":"ASC"}}`, wantErr: domain.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseViewConfig([]byte(tt.raw))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ParseViewConfig() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseViewConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestParseViewConfigReportsSchemaPath verifies the first schema violation is surfaced with its location.
func TestParseViewConfigReportsSchemaPath(t *testing.T) {
	_, err := ParseViewConfig([]byte(`{"mode":"project","project":{"query":"Inbox","sortOrder":"sideways"}}`))
	var schemaErr SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaValidationError, got %T (%v)", err, err)
	}
	if !strings.Contains(schemaErr.Path, "sortOrder") {
		t.Fatalf("expected sortOrder path, got %q", schemaErr.Path)
	}
	if got := domain.ErrorCode(err); got != "INVALID_CONFIG" {
		t.Fatalf("ErrorCode() = %q, want INVALID_CONFIG", got)
	}
}

// TestParseViewConfigDecodesBlocks verifies every mode block is decoded.
func TestParseViewConfigDecodesBlocks(t *testing.T) {
	raw, err := ParseViewConfig([]byte(`{
		"mode":"label",
		"project":{"query":"Work"},
		"label":{"query":"urgent","groupBy":"project","sortBy":"priority","sortOrder":"desc"},
		"filter":{"query":"today | overdue"}
	}`))
	if err != nil {
		t.Fatalf("ParseViewConfig() error = %v", err)
	}
	if raw.Mode != "label" || raw.Label == nil || raw.Project == nil || raw.Filter == nil {
		t.Fatalf("unexpected decoded config %#v", raw)
	}
	if raw.Label.GroupBy != "project" || raw.Label.SortBy != "priority" || raw.Label.SortOrder != "desc" {
		t.Fatalf("unexpected label block %#v", raw.Label)
	}
	if raw.Filter.Query != "today | overdue" {
		t.Fatalf("unexpected filter query %q", raw.Filter.Query)
	}
}

// TestValidateViewConfig verifies the per-mode vocabulary and error codes.
func TestValidateViewConfig(t *testing.T) {
	block := func(groupBy, sortBy string) *domain.RawViewSettings {
		return &domain.RawViewSettings{Query: "q", GroupBy: groupBy, SortBy: sortBy}
	}
	tests := []struct {
		name     string
		raw      domain.RawViewConfig
		wantErr  error
		wantCode string
	}{
		{name: "project by section", raw: domain.RawViewConfig{Mode: "project", Project: block("section", "date")}},
		{name: "project by priority", raw: domain.RawViewConfig{Mode: "project", Project: block("priority", "content")}},
		{name: "label by project", raw: domain.RawViewConfig{Mode: "label", Label: block("project", "priority")}},
		{name: "filter by date", raw: domain.RawViewConfig{Mode: "filter", Filter: block("date", "order")}},
		{name: "filter none", raw: domain.RawViewConfig{Mode: "filter", Filter: block("none", "")}},
		{
			name:     "unknown mode",
			raw:      domain.RawViewConfig{Mode: "board"},
			wantErr:  domain.ErrInvalidMode,
			wantCode: "INVALID_MODE",
		},
		{
			name:     "missing block",
			raw:      domain.RawViewConfig{Mode: "label", Project: block("", "")},
			wantErr:  domain.ErrInvalidConfig,
			wantCode: "INVALID_CONFIG",
		},
		{
			name:     "project cannot group by project",
			raw:      domain.RawViewConfig{Mode: "project", Project: block("project", "")},
			wantErr:  &domain.Error{Kind: domain.KindInvalidGroupBy, Mode: domain.ModeProject},
			wantCode: "INVALID_PROJECT_GROUPBY",
		},
		{
			name:     "label cannot group by section",
			raw:      domain.RawViewConfig{Mode: "label", Label: block("section", "")},
			wantErr:  &domain.Error{Kind: domain.KindInvalidGroupBy, Mode: domain.ModeLabel},
			wantCode: "INVALID_LABEL_GROUPBY",
		},
		{
			name:     "filter rejects unknown sort",
			raw:      domain.RawViewConfig{Mode: "filter", Filter: block("", "due")},
			wantErr:  &domain.Error{Kind: domain.KindInvalidSortBy, Mode: domain.ModeFilter},
			wantCode: "INVALID_FILTER_SORTBY",
		},
		{
			name:     "groupBy checked before sortBy",
			raw:      domain.RawViewConfig{Mode: "label", Label: block("section", "due")},
			wantErr:  domain.ErrInvalidGroupBy,
			wantCode: "INVALID_LABEL_GROUPBY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateViewConfig(tt.raw, domain.SortAsc)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateViewConfig() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateViewConfig() error = %v, want %v", err, tt.wantErr)
			}
			if got := domain.ErrorCode(err); got != tt.wantCode {
				t.Fatalf("ErrorCode() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

// TestValidateViewConfigDefaults verifies omitted settings fall back to their defaults.
func TestValidateViewConfigDefaults(t *testing.T) {
	raw := domain.RawViewConfig{Mode: "project", Project: &domain.RawViewSettings{Query: "Inbox"}}
	cfg, err := ValidateViewConfig(raw, domain.SortDesc)
	if err != nil {
		t.Fatalf("ValidateViewConfig() error = %v", err)
	}
	want := domain.ViewSettings{Query: "Inbox", GroupBy: domain.GroupByNone, SortBy: domain.SortByOrder, SortOrder: domain.SortDesc}
	if cfg.Mode != domain.ModeProject || cfg.Settings != want {
		t.Fatalf("unexpected config %#v", cfg)
	}

	cfg, err = ValidateViewConfig(raw, "")
	if err != nil {
		t.Fatalf("ValidateViewConfig() error = %v", err)
	}
	if cfg.Settings.SortOrder != domain.SortAsc {
		t.Fatalf("expected asc fallback, got %q", cfg.Settings.SortOrder)
	}

	raw.Project.SortOrder = "asc"
	cfg, err = ValidateViewConfig(raw, domain.SortDesc)
	if err != nil {
		t.Fatalf("ValidateViewConfig() error = %v", err)
	}
	if cfg.Settings.SortOrder != domain.SortAsc {
		t.Fatalf("explicit sortOrder overridden: %q", cfg.Settings.SortOrder)
	}
}
