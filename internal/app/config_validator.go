package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hylla/todoembed/internal/domain"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// viewConfigSchemaURL names the embedded schema resource.
const viewConfigSchemaURL = "todoembed://schemas/view_config.json"

// viewConfigSchema constrains the shape of an embedded config block.
// Vocabulary checks (mode, groupBy, sortBy) stay in Go so each gets its own error kind.
const viewConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["mode"],
  "properties": {
    "mode": {"type": "string"},
    "project": {"$ref": "#/definitions/settings"},
    "label": {"$ref": "#/definitions/settings"},
    "filter": {"$ref": "#/definitions/settings"}
  },
  "definitions": {
    "settings": {
      "type": "object",
      "properties": {
        "query": {"type": "string"},
        "groupBy": {"type": "string"},
        "sortBy": {"type": "string"},
        "sortOrder": {"enum": ["asc", "desc"]}
      }
    }
  }
}`

// compiledViewConfigSchema compiles the schema once per process.
var compiledViewConfigSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(viewConfigSchemaURL, strings.NewReader(viewConfigSchema)); err != nil {
		return nil, fmt.Errorf("add view config schema: %w", err)
	}
	schema, err := compiler.Compile(viewConfigSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile view config schema: %w", err)
	}
	return schema, nil
})

// SchemaValidationError describes the first schema violation of a config block.
type SchemaValidationError struct {
	Path    string
	Message string
}

// Error renders the schema-validation failure.
func (e SchemaValidationError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s: %s", path, e.Message)
}

// ParseViewConfig decodes one embedded config block.
// Malformed JSON fails with JSONParse; a well-formed document of the wrong shape fails with InvalidConfig.
func ParseViewConfig(raw []byte) (domain.RawViewConfig, error) {
	raw = bytes.TrimSpace(raw)
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.RawViewConfig{}, domain.NewError(domain.KindJSONParse, "", "", err)
	}

	schema, err := compiledViewConfigSchema()
	if err != nil {
		return domain.RawViewConfig{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return domain.RawViewConfig{}, domain.NewError(domain.KindInvalidConfig, "", "", firstSchemaViolation(err))
	}

	var cfg domain.RawViewConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.RawViewConfig{}, domain.NewError(domain.KindInvalidConfig, "", "", err)
	}
	return cfg, nil
}

// firstSchemaViolation reduces a jsonschema error tree to its first leaf.
func firstSchemaViolation(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return SchemaValidationError{
		Path:    jsonPointerToPath(ve.InstanceLocation),
		Message: ve.Message,
	}
}

// jsonPointerToPath renders a JSON pointer as a dotted path rooted at $.
func jsonPointerToPath(pointer string) string {
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return "$"
	}
	return "$." + strings.ReplaceAll(pointer, "/", ".")
}

// ValidateViewConfig checks raw against the mode vocabulary and applies defaults.
// groupBy defaults to none, sortBy to order and sortOrder to defaultOrder.
func ValidateViewConfig(raw domain.RawViewConfig, defaultOrder domain.SortOrder) (domain.ViewConfig, error) {
	mode := domain.Mode(strings.TrimSpace(raw.Mode))
	if !mode.Valid() {
		return domain.ViewConfig{}, domain.NewError(domain.KindInvalidMode, "", fmt.Sprintf("mode %q", raw.Mode), nil)
	}
	block := raw.SettingsFor(mode)
	if block == nil {
		return domain.ViewConfig{}, domain.NewError(domain.KindInvalidConfig, mode, fmt.Sprintf("missing %q settings block", mode), nil)
	}

	groupBy := domain.GroupBy(block.GroupBy)
	if groupBy == "" {
		groupBy = domain.GroupByNone
	}
	sortBy := domain.SortBy(block.SortBy)
	if sortBy == "" {
		sortBy = domain.SortByOrder
	}
	if !defaultOrder.Valid() {
		defaultOrder = domain.SortAsc
	}
	sortOrder := domain.SortOrder(block.SortOrder)
	if sortOrder == "" {
		sortOrder = defaultOrder
	}

	if !mode.AllowsGroupBy(groupBy) {
		return domain.ViewConfig{}, domain.NewError(domain.KindInvalidGroupBy, mode, fmt.Sprintf("groupBy %q", block.GroupBy), nil)
	}
	if !sortBy.Valid() {
		return domain.ViewConfig{}, domain.NewError(domain.KindInvalidSortBy, mode, fmt.Sprintf("sortBy %q", block.SortBy), nil)
	}
	if !sortOrder.Valid() {
		return domain.ViewConfig{}, domain.NewError(domain.KindInvalidConfig, mode, fmt.Sprintf("sortOrder %q", block.SortOrder), nil)
	}

	return domain.ViewConfig{
		Mode: mode,
		Settings: domain.ViewSettings{
			Query:     block.Query,
			GroupBy:   groupBy,
			SortBy:    sortBy,
			SortOrder: sortOrder,
		},
	}, nil
}
