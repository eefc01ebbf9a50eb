// Package render turns organized task views into widget HTML, terminal text and rendered documents.
package render

import (
	"bytes"
	"html/template"
	"io"

	"github.com/hylla/todoembed/internal/domain"
)

// EmptyMessage is shown in place of a view without tasks.
const EmptyMessage = "Yaay! No tasks"

// widgetTemplates holds the item, section, error and info templates of the task widget.
const widgetTemplates = `
{{- define "item" -}}
<div class="todoist-item-container" id="{{.Task.ID}}" data-completed="{{.Task.Completed}}">
  <div class="todoist-checkbox-container">
    <input class="todoist-checkbox" type="checkbox" id="input-{{.Task.ID}}"{{if .Task.Completed}} checked{{end}}>
    <label for="input-{{.Task.ID}}" data-priority="{{.Task.Priority}}"></label>
    {{- if .Children}}
    <div class="todoist-expand-collapse" data-target="{{.Task.ID}}"></div>
    {{- end}}
  </div>
  <div class="todoist-content-container">
    <div class="todoist-content">{{.Task.Content}}</div>
    {{- if .Task.HasParent}}
    <div class="todoist-content-meta"></div>
    {{- else}}
    <div class="todoist-content-meta">
      <div class="todoist-project"{{with .Project}} data-color="{{.Color}}"{{end}}>
        <span>{{with .Project}}{{.Name}}{{end}}</span>
        {{- with .Section}}
        <span>&nbsp;/&nbsp;</span>
        <span>{{.Name}}</span>
        {{- end}}
      </div>
      <div class="todoist-labels">
        {{- range .Labels}}
        <div class="todoist-label" data-color="{{.Color}}">{{.Name}}</div>
        {{- end}}
      </div>
    </div>
    {{- end}}
    {{- if .Children}}
    <div class="todoist-item-children">
      {{- range .Children -}}{{template "item" .}}{{- end -}}
    </div>
    {{- end}}
  </div>
</div>
{{- end -}}

{{- define "section" -}}
<div class="todoist-section-container">
  <div class="todoist-section-name">{{.Label}}</div>
  <div class="todoist-section-items">
    {{- range .Tasks -}}{{template "item" .}}{{- end -}}
  </div>
</div>
{{- end -}}

{{- define "view" -}}
{{- range .Groups -}}
{{- if .Ungrouped -}}
{{- range .Tasks -}}{{template "item" .}}{{- end -}}
{{- else if .Tasks -}}
{{- template "section" . -}}
{{- end -}}
{{- end -}}
{{- end -}}

{{- define "error" -}}
<div class="todoist-error">{{.}}</div>
{{- end -}}

{{- define "info" -}}
<div class="todoist-info">{{.}}</div>
{{- end -}}
`

var widget = template.Must(template.New("widget").Parse(widgetTemplates))

// WriteView writes the widget markup of view. An empty view renders the info message.
func WriteView(w io.Writer, view domain.OrganizedView) error {
	if view.Empty {
		return WriteInfo(w, EmptyMessage)
	}
	return widget.ExecuteTemplate(w, "view", view)
}

// WriteError writes the error box for err using its user-visible message.
func WriteError(w io.Writer, err error) error {
	return widget.ExecuteTemplate(w, "error", domain.UserMessage(err))
}

// WriteInfo writes one informational box.
func WriteInfo(w io.Writer, message string) error {
	return widget.ExecuteTemplate(w, "info", message)
}

// WidgetHTML renders the outcome of one render invocation: the error box when err is set,
// the task markup otherwise.
func WidgetHTML(view domain.OrganizedView, err error) (string, error) {
	var buf bytes.Buffer
	if err != nil {
		if writeErr := WriteError(&buf, err); writeErr != nil {
			return "", writeErr
		}
		return buf.String(), nil
	}
	if writeErr := WriteView(&buf, view); writeErr != nil {
		return "", writeErr
	}
	return buf.String(), nil
}
