package handlers

import (
	"bytes"
	"io/fs"
	"net/http"
	"os"
	"time"
)

// FaviconHandler serves the favicon.
//
// Resolution order:
//  1. If faviconPath is non-empty, serve that file from the real filesystem
//     (opened on every request so the file can be swapped without a restart).
//  2. Otherwise, serve favicon.svg from staticFS.
func FaviconHandler(staticFS fs.FS, faviconPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")

		if faviconPath != "" {
			f, err := os.Open(faviconPath)
			if err != nil {
				http.Error(w, "favicon not found", http.StatusNotFound)
				return
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				http.Error(w, "favicon not found", http.StatusNotFound)
				return
			}
			ct := typeForName(faviconPath)
			if ct == "" {
				ct = "image/x-icon"
			}
			w.Header().Set("Content-Type", ct)
			http.ServeContent(w, r, info.Name(), info.ModTime(), f)
			return
		}

		data, err := fs.ReadFile(staticFS, "favicon.svg")
		if err != nil {
			http.Error(w, "favicon not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		http.ServeContent(w, r, "favicon.svg", time.Time{}, bytes.NewReader(data))
	}
}
