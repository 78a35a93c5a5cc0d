// Package fragments serves the HTML fragments tool panels are built from.
//
// Fragments are read from an embedded tree, optionally shadowed file by file
// by an override directory on disk. Markdown (.md) and Org (.org) sources are
// rendered to HTML; anything read from the override directory is sanitized.
// Rendered fragments are cached until the watcher sees their file change or
// the safety TTL runs out.
package fragments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound is returned for fragment locations that exist nowhere.
var ErrNotFound = errors.New("fragment not found")

// safetyTTL bounds how long a cached fragment lives without a watcher event.
// Under normal operation the watcher evicts entries long before it fires.
const safetyTTL = 20 * time.Minute

type entry struct {
	html    string
	expires time.Time
}

// Source loads and renders fragments. It is safe for concurrent use.
type Source struct {
	embedded fs.FS
	dir      string
	render   *renderer

	mu    sync.Mutex
	cache map[string]entry
}

// Options configures a Source.
type Options struct {
	// Dir is an optional directory whose files take precedence over the
	// embedded ones.
	Dir string
	// Theme is the Chroma style used for code blocks in rendered documents.
	Theme string
}

// New returns a Source reading from embedded and, if set, opts.Dir.
func New(embedded fs.FS, opts Options) *Source {
	return &Source{
		embedded: embedded,
		dir:      opts.Dir,
		render:   newRenderer(opts.Theme),
		cache:    make(map[string]entry),
	}
}

// Dir returns the override directory, or "" when there is none.
func (s *Source) Dir() string { return s.dir }

// Fetch returns the rendered fragment stored at location, a slash-separated
// path relative to the fragment root.
func (s *Source) Fetch(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fs.ValidPath(location) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, location)
	}

	s.mu.Lock()
	e, ok := s.cache[location]
	s.mu.Unlock()
	if ok && time.Now().Before(e.expires) {
		return e.html, nil
	}

	src, trusted, err := s.read(location)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := s.render.render(location, src, trusted)
	if err != nil {
		return "", fmt.Errorf("fragment %s: %w", location, err)
	}

	s.mu.Lock()
	s.cache[location] = entry{html: html, expires: time.Now().Add(safetyTTL)}
	s.mu.Unlock()
	return html, nil
}

// read returns the raw bytes for location and whether they came from the
// embedded tree.
func (s *Source) read(location string) ([]byte, bool, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(location)))
		if err == nil {
			return data, false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("fragment %s: %w", location, err)
		}
	}
	data, err := fs.ReadFile(s.embedded, location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %q", ErrNotFound, location)
		}
		return nil, false, fmt.Errorf("fragment %s: %w", location, err)
	}
	return data, true, nil
}

// Invalidate drops the cached rendering of location.
func (s *Source) Invalidate(location string) {
	s.mu.Lock()
	delete(s.cache, location)
	s.mu.Unlock()
}

// Purge drops every cached rendering.
func (s *Source) Purge() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}
