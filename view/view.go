// Package view renders HTML templates with the shared i18n func map.
package view

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/diewo77/go-quotes/i18n"
	"github.com/shopspring/decimal"
)

// Renderer parses templates from an fs.FS. A page template is wrapped in
// layout.html when the FS has one.
type Renderer struct {
	fsys fs.FS

	mu    sync.RWMutex
	cache map[string]*template.Template
	// Dev disables caching so edited templates are picked up.
	Dev bool
}

func New(fsys fs.FS) *Renderer {
	return &Renderer{fsys: fsys, cache: map[string]*template.Template{}}
}

// Funcs returns the standard func map for lang.
func Funcs(lang string) template.FuncMap {
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"tf":   func(code string, args ...any) string { return i18n.Tf(lang, code, args...) },
		"lang": func() string { return lang },
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"date": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			if lang == "en" {
				return t.Format("2006-01-02")
			}
			return t.Format("02/01/2006")
		},
		"year": func() int { return time.Now().Year() },
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// Render executes the page template name in lang into w.
func (r *Renderer) Render(w io.Writer, name, lang string, data any) error {
	t, err := r.template(name, lang)
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}

func (r *Renderer) template(name, lang string) (*template.Template, error) {
	key := lang + "/" + name
	if !r.Dev {
		r.mu.RLock()
		t, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	if _, err := fs.Stat(r.fsys, name); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}

	files := []string{name}
	root := name
	if _, err := fs.Stat(r.fsys, "layout.html"); err == nil {
		files = []string{"layout.html", name}
		root = "layout.html"
	}
	t, err := template.New(root).Funcs(Funcs(lang)).ParseFS(r.fsys, files...)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("template not parsed")
	}
	if !r.Dev {
		r.mu.Lock()
		r.cache[key] = t
		r.mu.Unlock()
	}
	return t, nil
}
