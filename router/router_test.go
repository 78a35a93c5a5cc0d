package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeView records what the router did to it.
type fakeView struct {
	mu        sync.Mutex
	html      string
	title     string
	location  string
	highlight string
	state     string
	writes    int
}

func (v *fakeView) HTML() string            { v.mu.Lock(); defer v.mu.Unlock(); return v.html }
func (v *fakeView) SetHTML(h string)        { v.mu.Lock(); v.html = h; v.mu.Unlock() }
func (v *fakeView) Highlight(id string)     { v.mu.Lock(); v.highlight = id; v.mu.Unlock() }
func (v *fakeView) SetLocation(id string)   { v.mu.Lock(); v.location = id; v.mu.Unlock() }
func (v *fakeView) SetTitle(t string)       { v.mu.Lock(); v.title = t; v.mu.Unlock() }
func (v *fakeView) ShowLoading()            { v.set("loading", "") }
func (v *fakeView) ShowContent(html string) { v.set("ready", html) }
func (v *fakeView) ShowError()              { v.set("error", "") }

func (v *fakeView) set(state, html string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = state
	v.html = html
	v.writes++
}

// countingFetcher serves fragments from a map and counts calls.
type countingFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
	fail  error
}

func (f *countingFetcher) Fetch(_ context.Context, loc string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return "", f.fail
	}
	html, ok := f.pages[loc]
	if !ok {
		return "", errors.New("not found")
	}
	return html, nil
}

type spyHandler struct {
	activated int
	torn      int
	err       error
}

func (h *spyHandler) Activate(_ context.Context, c Container) error {
	h.activated++
	if h.err != nil {
		return h.err
	}
	c.SetHTML(c.HTML() + "<!-- active -->")
	return nil
}

func (h *spyHandler) Teardown() { h.torn++ }

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		Tool{ID: "peeler", Title: "Peeled Files", Template: "peeler.html"},
		Tool{ID: "rotator", Title: "WebP Rotator", Template: "rotator.html"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newTestRouter(t *testing.T, f Fetcher, handlers map[string]Handler) (*Router, *fakeView) {
	t.Helper()
	v := &fakeView{}
	r := New(Config{
		Registry: testRegistry(t),
		Handlers: handlers,
		View:     v,
		Fetcher:  f,
		SiteName: "Dev Tools",
	})
	return r, v
}

func pages() map[string]string {
	return map[string]string{"peeler.html": "<p>peel</p>", "rotator.html": "<p>rotate</p>"}
}

func TestNavigateLoadsAndActivates(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	h := &spyHandler{}
	r, v := newTestRouter(t, f, map[string]Handler{"peeler": h})

	if err := r.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if r.Active() != "peeler" {
		t.Errorf("Active = %q", r.Active())
	}
	if v.html != "<p>peel</p><!-- active -->" {
		t.Errorf("html = %q", v.html)
	}
	if v.title != "Peeled Files | Dev Tools" || v.location != "peeler" || v.highlight != "peeler" {
		t.Errorf("chrome = %q %q %q", v.title, v.location, v.highlight)
	}
	if h.activated != 1 {
		t.Errorf("activated = %d", h.activated)
	}
}

func TestNavigateToActiveIsNoop(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	r, v := newTestRouter(t, f, nil)
	if err := r.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatal(err)
	}
	writes := v.writes
	if err := r.Navigate(context.Background(), "peeler"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("err = %v, want ErrAlreadyActive", err)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
	if v.writes != writes {
		t.Errorf("view rewritten on self navigation")
	}
}

func TestNavigateUnknownLeavesStateAlone(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	r, v := newTestRouter(t, f, nil)
	if err := r.Navigate(context.Background(), "rotator"); err != nil {
		t.Fatal(err)
	}
	html, loc, writes := v.html, v.location, v.writes
	if err := r.Navigate(context.Background(), "nope"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
	if r.Active() != "rotator" {
		t.Errorf("Active = %q", r.Active())
	}
	if v.html != html || v.location != loc || v.writes != writes {
		t.Error("view changed on unknown navigation")
	}
}

func TestNavigateFailureUnsetsActiveTool(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	peel := &spyHandler{}
	r, v := newTestRouter(t, f, map[string]Handler{"peeler": peel})
	if err := r.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatal(err)
	}

	f.fail = errors.New("503")
	err := r.Navigate(context.Background(), "rotator")
	var le *LoadError
	if !errors.As(err, &le) || le.Tool != "rotator" {
		t.Fatalf("err = %v, want *LoadError for rotator", err)
	}
	if v.state != "error" {
		t.Errorf("state = %q, want error", v.state)
	}
	if r.Active() != "" {
		t.Errorf("Active = %q, want none", r.Active())
	}
	if peel.torn != 1 {
		t.Errorf("previous tool torn down %d times", peel.torn)
	}

	// Retrying the same id is a fresh navigation.
	f.fail = nil
	if err := r.Navigate(context.Background(), "rotator"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if r.Active() != "rotator" || f.calls != 3 {
		t.Errorf("after retry active=%q calls=%d", r.Active(), f.calls)
	}
}

func TestActivateFailureShowsError(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	h := &spyHandler{err: errors.New("setup failed")}
	r, v := newTestRouter(t, f, map[string]Handler{"rotator": h})
	err := r.Navigate(context.Background(), "rotator")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v", err)
	}
	if v.state != "error" || r.Active() != "" {
		t.Errorf("state=%q active=%q", v.state, r.Active())
	}
}

func TestRevisitReactivates(t *testing.T) {
	f := &countingFetcher{pages: pages()}
	peel := &spyHandler{}
	r, _ := newTestRouter(t, f, map[string]Handler{"peeler": peel})
	for _, id := range []string{"peeler", "rotator", "peeler"} {
		if err := r.Navigate(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	if peel.activated != 2 || peel.torn != 1 {
		t.Errorf("activated=%d torn=%d", peel.activated, peel.torn)
	}
}

// blockingFetcher holds the first fetch until released.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	gotCtx  context.Context
}

func (f *blockingFetcher) Fetch(ctx context.Context, loc string) (string, error) {
	first := false
	f.once.Do(func() { first = true })
	if first {
		f.gotCtx = ctx
		close(f.started)
		<-f.release
		return "<p>stale " + loc + "</p>", nil
	}
	return "<p>fresh " + loc + "</p>", nil
}

func TestSupersededNavigationDoesNotWrite(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	r, v := newTestRouter(t, f, nil)

	done := make(chan error, 1)
	go func() { done <- r.Navigate(context.Background(), "peeler") }()
	<-f.started

	if err := r.Navigate(context.Background(), "rotator"); err != nil {
		t.Fatalf("second navigation: %v", err)
	}
	select {
	case <-f.gotCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded navigation context was not cancelled")
	}
	close(f.release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first navigation err = %v, want ErrSuperseded", err)
	}
	if !strings.Contains(v.HTML(), "fresh rotator.html") {
		t.Errorf("html = %q", v.HTML())
	}
	if r.Active() != "rotator" {
		t.Errorf("Active = %q", r.Active())
	}
}

type recorderFunc func(ctx context.Context, tool string) error

func (f recorderFunc) RecordVisit(ctx context.Context, tool string) error { return f(ctx, tool) }

func TestRecorderFailureDoesNotFailNavigation(t *testing.T) {
	visited := make(chan string, 1)
	v := &fakeView{}
	r := New(Config{
		Registry: testRegistry(t),
		View:     v,
		Fetcher:  &countingFetcher{pages: pages()},
		Recorder: recorderFunc(func(_ context.Context, tool string) error {
			visited <- tool
			return errors.New("storage unavailable")
		}),
	})
	if err := r.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-visited:
		if got != "peeler" {
			t.Errorf("recorded %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("visit not recorded")
	}
	if v.title != "Peeled Files" {
		t.Errorf("title without site name = %q", v.title)
	}
}

func TestHelpAppendedWhenPresent(t *testing.T) {
	reg, _ := NewRegistry(Tool{ID: "peeler", Title: "Peeled", Template: "p.html", Help: "p.help.md"})
	f := &countingFetcher{pages: map[string]string{"p.html": "<p>x</p>", "p.help.md": "<p>help</p>"}}
	v := &fakeView{}
	r := New(Config{Registry: reg, View: v, Fetcher: f})
	if err := r.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(v.html, `<details class="tool-help"><summary>Help</summary><p>help</p></details>`) {
		t.Errorf("html = %q", v.html)
	}
}
