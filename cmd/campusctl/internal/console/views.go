package console

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// views holds one template set per page, each layered over layout.html.
type views struct {
	pages map[string]*template.Template
}

func newViews() (*views, error) {
	funcs := template.FuncMap{
		"join": strings.Join,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02 Jan 2006 15:04")
		},
	}
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		page := strings.TrimPrefix(name, "templates/")
		if page == "layout.html" {
			continue
		}
		clone, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		v.pages[strings.TrimSuffix(page, ".html")] = clone
	}
	return v, nil
}

// render executes page into a buffer first so a template failure never
// leaves a half-written response.
func (v *views) render(w http.ResponseWriter, status int, page string, data any) error {
	tpl, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
