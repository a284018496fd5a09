// Package templates renders the field page and the HTML fragments patched
// into it by Datastar SSE responses.
package templates

import (
	"bytes"
	"html/template"
	"io/fs"
)

// funcMap provides the signal naming helpers. Instance IDs are restricted to
// [a-z0-9_], so sig output is safe to splice into a Datastar expression.
var funcMap = template.FuncMap{
	"signal": func(id, name string) string {
		return id + "_" + name
	},
	"sig": func(id, name string) template.JS {
		return template.JS("$" + id + "_" + name)
	},
}

// Renderer manages HTML templates.
type Renderer struct {
	templates *template.Template
}

// New creates a renderer from the files in fsys matching patterns.
func New(fsys fs.FS, patterns ...string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	return r.templates.ExecuteTemplate(buf, name, data)
}
