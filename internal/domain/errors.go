package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind names one failure class of a render invocation.
type ErrorKind string

// KindNoToken and related constants enumerate render failure classes.
const (
	KindNoToken                  ErrorKind = "no_token"
	KindJSONParse                ErrorKind = "json_parse"
	KindInvalidMode              ErrorKind = "invalid_mode"
	KindInvalidGroupBy           ErrorKind = "invalid_group_by"
	KindInvalidSortBy            ErrorKind = "invalid_sort_by"
	KindInvalidConfig            ErrorKind = "invalid_config"
	KindInvalidProject           ErrorKind = "invalid_project"
	KindInvalidSection           ErrorKind = "invalid_section"
	KindInvalidSectionForProject ErrorKind = "invalid_section_for_project"
	KindInvalidLabel             ErrorKind = "invalid_label"
	KindRemote                   ErrorKind = "remote"
	KindInconsistentMetadata     ErrorKind = "inconsistent_metadata"
)

// Error is the typed failure returned by the render pipeline.
type Error struct {
	Kind   ErrorKind
	Mode   Mode
	Detail string
	Err    error
}

// Sentinels usable with errors.Is. Mode-specific matches use &Error{Kind: ..., Mode: ...}.
var (
	ErrNoToken                  = &Error{Kind: KindNoToken}
	ErrJSONParse                = &Error{Kind: KindJSONParse}
	ErrInvalidMode              = &Error{Kind: KindInvalidMode}
	ErrInvalidGroupBy           = &Error{Kind: KindInvalidGroupBy}
	ErrInvalidSortBy            = &Error{Kind: KindInvalidSortBy}
	ErrInvalidConfig            = &Error{Kind: KindInvalidConfig}
	ErrInvalidProject           = &Error{Kind: KindInvalidProject}
	ErrInvalidSection           = &Error{Kind: KindInvalidSection}
	ErrInvalidSectionForProject = &Error{Kind: KindInvalidSectionForProject}
	ErrInvalidLabel             = &Error{Kind: KindInvalidLabel}
	ErrRemote                   = &Error{Kind: KindRemote}
	ErrInconsistentMetadata     = &Error{Kind: KindInconsistentMetadata}
)

// NewError builds one typed error with optional detail and cause.
func NewError(kind ErrorKind, mode Mode, detail string, cause error) *Error {
	return &Error{Kind: kind, Mode: mode, Detail: strings.TrimSpace(detail), Err: cause}
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.ReplaceAll(string(e.Kind), "_", " ")
	if e.Mode != "" {
		msg = fmt.Sprintf("%s (%s mode)", msg, e.Mode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on kind, and on mode only when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Mode == "" || t.Mode == e.Mode
}

// RemoteError wraps a failed or non-2xx response from the remote task service.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

// Error implements error.
func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("todoist %s: status %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
	case e.Err != nil:
		return fmt.Sprintf("todoist %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("todoist %s failed", e.Op)
	}
}

// Unwrap exposes the transport cause.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is reports RemoteError as ErrRemote.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindRemote && t.Mode == ""
}

// KindOf returns the kind carried by err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return KindRemote
	}
	return ""
}

// ErrorCode returns the widget error code for err, e.g. INVALID_LABEL_GROUPBY.
func ErrorCode(err error) string {
	var typed *Error
	hasTyped := errors.As(err, &typed)
	switch KindOf(err) {
	case KindNoToken:
		return "NO_TOKEN"
	case KindJSONParse:
		return "JSON_PARSE_ERROR"
	case KindInvalidMode:
		return "INVALID_MODE"
	case KindInvalidGroupBy:
		if hasTyped && typed.Mode != "" {
			return "INVALID_" + strings.ToUpper(string(typed.Mode)) + "_GROUPBY"
		}
		return "INVALID_GROUPBY"
	case KindInvalidSortBy:
		if hasTyped && typed.Mode != "" {
			return "INVALID_" + strings.ToUpper(string(typed.Mode)) + "_SORTBY"
		}
		return "INVALID_SORTBY"
	case KindInvalidConfig:
		return "INVALID_CONFIG"
	case KindInvalidProject:
		return "INVALID_PROJECT"
	case KindInvalidSection:
		return "INVALID_SECTION"
	case KindInvalidSectionForProject:
		return "INVALID_SECTION_FOR_PROJECT"
	case KindInvalidLabel:
		return "INVALID_LABEL"
	case KindRemote:
		return "REMOTE_ERROR"
	case KindInconsistentMetadata:
		return "INCONSISTENT_METADATA"
	default:
		return "INTERNAL_ERROR"
	}
}

// configHelpURL is linked from every configuration error message.
const configHelpURL = "https://github.com/pavkum/notable-todoist/blob/main/README.md"

// UserMessage returns the text shown in place of a block that failed to render.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNoToken:
		return "Please set todoist token in your configuration. Please refer to documentation"
	case KindJSONParse:
		return "JSON specified in the config is invalid. Please validate it"
	case KindInvalidLabel:
		return "Label specified in the config doesn't exist or is not created"
	case KindInvalidProject:
		return "Project specified in the config doesn't exist or is not created"
	case KindInvalidSection:
		return "Section specified in the config doesn't exist or is not created"
	case KindInvalidSectionForProject:
		return "Section specified doesn't belong to the project in the config. Please check"
	case KindInvalidMode, KindInvalidGroupBy, KindInvalidSortBy, KindInvalidConfig:
		return "Invalid todoist config. Please refer to " + configHelpURL + " for more information"
	case KindRemote:
		var remote *RemoteError
		if errors.As(err, &remote) && strings.TrimSpace(remote.Body) != "" {
			return "An error occurred while syncing the data: " + strings.TrimSpace(remote.Body)
		}
		return "An error occurred while syncing the data"
	case KindInconsistentMetadata:
		return "Todoist returned tasks that reference unknown projects, sections or labels"
	default:
		if err == nil {
			return ""
		}
		return "Unexpected error: " + err.Error()
	}
}
