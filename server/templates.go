// Package server contains the HTTP server setup and template management.
package server

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	"toolshed/models"
)

// Templates wraps the compiled page templates.
type Templates struct {
	shell *template.Template
}

// LoadTemplates parses base.html and index.html from the templates/
// subtree of assets. Pages are cloned from base so their
// {{define "content"}} blocks never collide.
func LoadTemplates(assets fs.FS) (*Templates, error) {
	sub, err := fs.Sub(assets, "templates")
	if err != nil {
		return nil, fmt.Errorf("sub fs: %w", err)
	}
	base, err := template.New("").ParseFS(sub, "base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}
	shell, err := base.Clone()
	if err != nil {
		return nil, err
	}
	if shell, err = shell.ParseFS(sub, "index.html"); err != nil {
		return nil, fmt.Errorf("parse shell template: %w", err)
	}
	return &Templates{shell: shell}, nil
}

// loadTemplatesFromDisk loads templates from a directory on disk. Used in
// tests where the embedded FS from main is not available.
func loadTemplatesFromDisk(dir string) (*Templates, error) {
	return LoadTemplates(os.DirFS(dir))
}

// ExecuteShell renders the page shell.
func (t *Templates) ExecuteShell(w http.ResponseWriter, data *models.Shell) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.shell.ExecuteTemplate(w, "base", data)
}
