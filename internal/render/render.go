// Package render turns protocol templates into device configuration text.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// ErrUnknownTemplate is returned when no template has the requested name
var ErrUnknownTemplate = errors.New("unknown template")

// Renderer holds a parsed set of named templates
type Renderer struct {
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	"join":  func(list []string, sep string) string { return strings.Join(list, sep) },
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// New loads every *.tmpl file in dir, or the built-in set when dir is empty.
// A template is named after its file without the extension.
func New(dir string) (*Renderer, error) {
	if dir == "" {
		sub, err := fs.Sub(defaultTemplates, "templates")
		if err != nil {
			return nil, err
		}
		return NewFromFS(sub)
	}
	return NewFromFS(os.DirFS(dir))
}

// NewFromFS loads every *.tmpl file at the root of fsys
func NewFromFS(fsys fs.FS) (*Renderer, error) {
	files, err := fs.Glob(fsys, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no *.tmpl templates found")
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", file, err)
		}

		name := strings.TrimSuffix(path.Base(file), ".tmpl")
		tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		r.templates[name] = tpl
	}

	return r, nil
}

// Has reports whether a template with this name is loaded
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Names returns the loaded template names, sorted
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template against data
func (r *Renderer) Render(name string, data any) (string, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
