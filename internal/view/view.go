package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"go-storefront/internal/auth"
)

// View represents a collection of parsed HTML templates.
type View struct {
	templates map[string]*template.Template
	siteName  string
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
	"add": func(a, b int) int {
		return a + b
	},
}

// New creates a new View by parsing all templates from the given filesystem.
func New(templateFS fs.FS, siteName string) (*View, error) {
	v := &View{
		templates: make(map[string]*template.Template),
		siteName:  siteName,
	}

	// First, get all the layout files
	layouts, err := fs.Glob(templateFS, "templates/layouts/*.html")
	if err != nil {
		return nil, err
	}

	// Then, get all the page files
	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	// For each page, parse it with the layout files
	for _, page := range pages {
		files := append(append([]string{}, layouts...), page)
		name := filepath.Base(page)
		ts, err := template.New(name).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		v.templates[name] = ts
	}

	return v, nil
}

// Render executes a specific template by name.
func (v *View) Render(w io.Writer, r *http.Request, name string, data map[string]interface{}) error {
	ts, ok := v.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	if data == nil {
		data = make(map[string]interface{})
	}
	data["CurrentUser"] = auth.IdentityFrom(r.Context())
	data["SiteName"] = v.siteName

	// Execute the template into a buffer first to catch any errors
	// before writing to the response writer.
	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		return err
	}

	_, err := buf.WriteTo(w)
	return err
}
