package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"toolshed/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:         7890,
		Title:        "Dev Tools",
		DefaultTool:  "peeler",
		Theme:        "catppuccin-mocha",
		UsageBackend: config.UsageOff,
		MaxUpload:    8 << 20,
		SessionTTL:   time.Hour,
	}
}

// newTestApp wires the server against the repository's own assets.
func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app, err := New(ctx, cfg, os.DirFS(".."))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func get(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(os.DirFS(".."))
	if err != nil {
		t.Fatal(err)
	}
	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "peeler" || ids[1] != "rotator" {
		t.Errorf("ids = %v", ids)
	}
}

func TestNewRejectsUnknownDefaultTool(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultTool = "nope"
	if _, err := New(context.Background(), cfg, os.DirFS("..")); err == nil {
		t.Fatal("expected error")
	}
}

func TestShellAndNavigation(t *testing.T) {
	app := newTestApp(t, testConfig())

	w := get(t, app.Handler, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("shell status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `data-default-tool="peeler"`) {
		t.Error("shell missing default tool")
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie")
	}

	w = get(t, app.Handler, "/nav/peeler", cookies...)
	if w.Code != http.StatusOK {
		t.Fatalf("nav status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="inputText"`) {
		t.Error("peeler fragment missing")
	}
	if !strings.Contains(body, `class="tool-help"`) {
		t.Error("help section missing")
	}
	if got := w.Header().Get("X-Tool-Title"); got != "Peeled Files | Dev Tools" {
		t.Errorf("X-Tool-Title = %q", got)
	}

	// A reload renders the active tool into the shell.
	w = get(t, app.Handler, "/", cookies...)
	if !strings.Contains(w.Body.String(), `id="inputText"`) {
		t.Error("reload lost the active tool")
	}
	if !strings.Contains(w.Body.String(), "<title>Peeled Files | Dev Tools</title>") {
		t.Error("reload lost the tool title")
	}

	if w := get(t, app.Handler, "/nav/rotator", cookies...); w.Code != http.StatusOK {
		t.Errorf("rotator nav status = %d", w.Code)
	}
}

func TestStaticRoutes(t *testing.T) {
	app := newTestApp(t, testConfig())
	cases := map[string]string{
		"/static/app.js":    "javascript",
		"/static/style.css": "text/css",
		"/favicon.ico":      "image/svg+xml",
		"/highlight.css":    "text/css",
	}
	for path, ct := range cases {
		w := get(t, app.Handler, path)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
			continue
		}
		if got := w.Header().Get("Content-Type"); !strings.Contains(got, ct) {
			t.Errorf("%s Content-Type = %q, want %s", path, got, ct)
		}
	}
}

func TestUsageFileBackend(t *testing.T) {
	cfg := testConfig()
	cfg.UsageBackend = config.UsageFile
	cfg.UsagePath = t.TempDir()
	app := newTestApp(t, cfg)

	w := get(t, app.Handler, "/api/usage")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"known_tools":["peeler","rotator"]`) {
		t.Errorf("known tools not synced: %s", w.Body.String())
	}
}

func TestOpenUsageFallsBackToDiscard(t *testing.T) {
	cfg := testConfig()
	cfg.UsageBackend = config.UsageFile
	cfg.UsagePath = "/dev/null/not-a-dir"
	sink := openUsage(cfg)
	defer sink.Close()
	if err := sink.RecordVisit(context.Background(), "peeler"); err != nil {
		t.Errorf("fallback sink failed: %v", err)
	}
}
