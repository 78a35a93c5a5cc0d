package fragments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func embedded() fstest.MapFS {
	return fstest.MapFS{
		"peeler.html":    {Data: []byte(`<div id="peeler"><textarea id="inputText"></textarea><script>x()</script></div>`)},
		"peeler.help.md": {Data: []byte("# Usage\n\nPaste *paths*.\n\n```go\nfmt.Println(1)\n```\n")},
		"rotator.org":    {Data: []byte("* Rotating\nDrop WebP files.\n")},
		"notes.txt":      {Data: []byte("plain")},
	}
}

func TestFetchEmbeddedHTMLIsTrusted(t *testing.T) {
	s := New(embedded(), Options{})
	html, err := s.Fetch(context.Background(), "peeler.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<script>") {
		t.Errorf("embedded html was altered: %q", html)
	}
}

func TestFetchMarkdown(t *testing.T) {
	s := New(embedded(), Options{})
	html, err := s.Fetch(context.Background(), "peeler.help.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, `<h1 id="usage">Usage</h1>`) {
		t.Errorf("heading missing: %q", html)
	}
	if !strings.Contains(html, "<em>paths</em>") {
		t.Errorf("emphasis missing: %q", html)
	}
	if !strings.Contains(html, `class="chroma"`) {
		t.Errorf("code block not highlighted: %q", html)
	}
}

func TestFetchOrg(t *testing.T) {
	s := New(embedded(), Options{})
	html, err := s.Fetch(context.Background(), "rotator.org")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "Rotating") || !strings.Contains(html, "Drop WebP files.") {
		t.Errorf("org output = %q", html)
	}
}

func TestFetchErrors(t *testing.T) {
	s := New(embedded(), Options{})
	ctx := context.Background()
	for _, loc := range []string{"missing.html", "../etc/passwd", "/abs.html"} {
		if _, err := s.Fetch(ctx, loc); !errors.Is(err, ErrNotFound) {
			t.Errorf("Fetch(%q) err = %v, want ErrNotFound", loc, err)
		}
	}
	if _, err := s.Fetch(ctx, "notes.txt"); err == nil {
		t.Error("expected error for unsupported extension")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Fetch(cancelled, "peeler.html"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled fetch err = %v", err)
	}
}

func TestOverrideDirIsSanitized(t *testing.T) {
	dir := t.TempDir()
	override := `<div id="peeler" onclick="evil()"><input type="checkbox" id="keepExtension" checked><script>evil()</script></div>`
	if err := os.WriteFile(filepath.Join(dir, "peeler.html"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(embedded(), Options{Dir: dir})
	html, err := s.Fetch(context.Background(), "peeler.html")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "script") || strings.Contains(html, "onclick") {
		t.Errorf("override not sanitized: %q", html)
	}
	if !strings.Contains(html, `id="keepExtension"`) || !strings.Contains(html, "checked") {
		t.Errorf("form control stripped: %q", html)
	}

	// Files missing from the override dir fall back to the embedded tree.
	if _, err := s.Fetch(context.Background(), "rotator.org"); err != nil {
		t.Errorf("fallback fetch: %v", err)
	}
}

func TestCacheAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "peeler.html")
	os.WriteFile(file, []byte("<p>one</p>"), 0o644)
	s := New(embedded(), Options{Dir: dir})
	ctx := context.Background()

	first, _ := s.Fetch(ctx, "peeler.html")
	os.WriteFile(file, []byte("<p>two</p>"), 0o644)
	cached, _ := s.Fetch(ctx, "peeler.html")
	if cached != first {
		t.Errorf("cache bypassed: %q", cached)
	}
	s.Invalidate("peeler.html")
	fresh, _ := s.Fetch(ctx, "peeler.html")
	if fresh != "<p>two</p>" {
		t.Errorf("after invalidate = %q", fresh)
	}
}

func TestWatchEvictsChangedFragment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "peeler.html")
	os.WriteFile(file, []byte("<p>one</p>"), 0o644)
	s := New(embedded(), Options{Dir: dir})
	stop, err := s.Watch()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer stop()

	ctx := context.Background()
	if _, err := s.Fetch(ctx, "peeler.html"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("<p>two</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		html, _ := s.Fetch(ctx, "peeler.html")
		if html == "<p>two</p>" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not evict the changed fragment")
}

func TestWatchWithoutDir(t *testing.T) {
	s := New(embedded(), Options{})
	stop, err := s.Watch()
	if err != nil {
		t.Fatal(err)
	}
	stop()
}

func TestHighlightCSS(t *testing.T) {
	if css := HighlightCSS("no-such-style"); len(css) == 0 {
		t.Error("expected fallback stylesheet")
	}
}
