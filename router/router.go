// Package router switches a content region between registered tools.
//
// A navigation fetches the tool's fragment, injects it into the region and
// activates the tool's handler. Overlapping navigations are ordered by a
// sequence token: starting a navigation cancels the one in flight, and only
// the newest navigation may write to the view once its fetch returns.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	// ErrUnknownTool is returned for ids that are not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrAlreadyActive is returned when navigating to the active tool.
	ErrAlreadyActive = errors.New("tool already active")
	// ErrSuperseded is returned by a navigation that a newer one replaced
	// before it finished.
	ErrSuperseded = errors.New("navigation superseded")
)

// LoadError reports a failed fragment fetch or tool activation.
type LoadError struct {
	Tool string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load tool %s: %v", e.Tool, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Handler is the behaviour bound to a tool.
type Handler interface {
	// Activate runs after the tool's fragment is in place. An error is
	// treated like a failed fragment load.
	Activate(ctx context.Context, c Container) error
	// Teardown runs when the tool stops being active.
	Teardown()
}

// Container gives a handler access to the injected fragment.
type Container interface {
	HTML() string
	SetHTML(html string)
}

// View is the page chrome and content region a router drives.
type View interface {
	Container
	Highlight(tool string)
	SetLocation(tool string)
	SetTitle(title string)
	ShowLoading()
	ShowContent(html string)
	ShowError()
}

// Fetcher loads the fragment stored at a tool's template location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, location string) (string, error) {
	return f(ctx, location)
}

// Recorder receives a note of every successful navigation.
type Recorder interface {
	RecordVisit(ctx context.Context, tool string) error
}

// Router owns the navigation state of one view.
type Router struct {
	registry *Registry
	handlers map[string]Handler
	view     View
	fetcher  Fetcher
	recorder Recorder
	siteName string

	mu     sync.Mutex
	active string
	seq    uint64
	cancel context.CancelFunc
}

// Config holds the collaborators of a Router.
type Config struct {
	Registry *Registry
	// Handlers maps tool ids to their behaviour. Tools without a handler
	// get a no-op one.
	Handlers map[string]Handler
	View     View
	Fetcher  Fetcher
	// Recorder is optional; failures are logged and otherwise ignored.
	Recorder Recorder
	// SiteName is appended to every tool title.
	SiteName string
}

// New returns a Router with no active tool.
func New(cfg Config) *Router {
	return &Router{
		registry: cfg.Registry,
		handlers: cfg.Handlers,
		view:     cfg.View,
		fetcher:  cfg.Fetcher,
		recorder: cfg.Recorder,
		siteName: cfg.SiteName,
	}
}

// Active returns the id of the active tool, or "" when none is.
func (r *Router) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Registry returns the tools this router can navigate to.
func (r *Router) Registry() *Registry { return r.registry }

// Navigate makes id the active tool.
//
// Unknown ids and the already active id leave everything untouched. Any
// other id tears down the active tool, shows the loading placeholder and
// fetches the fragment. On failure the view shows the error panel and no
// tool is active, so retrying the same id fetches again.
func (r *Router) Navigate(ctx context.Context, id string) error {
	tool, ok := r.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, id)
	}

	r.mu.Lock()
	if id == r.active {
		r.mu.Unlock()
		return ErrAlreadyActive
	}
	r.seq++
	token := r.seq
	if r.cancel != nil {
		r.cancel()
	}
	navCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	if r.active != "" {
		r.handler(r.active).Teardown()
		r.active = ""
	}
	r.view.Highlight(id)
	r.view.SetLocation(id)
	r.view.ShowLoading()
	r.mu.Unlock()

	html, err := r.fetcher.Fetch(navCtx, tool.Template)
	if err == nil && tool.Help != "" {
		html += r.help(navCtx, tool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.seq {
		return ErrSuperseded
	}
	defer func() {
		cancel()
		r.cancel = nil
	}()

	if err != nil {
		r.view.ShowError()
		return &LoadError{Tool: id, Err: err}
	}

	r.view.ShowContent(html)
	if err := r.handler(id).Activate(navCtx, r.view); err != nil {
		r.view.ShowError()
		return &LoadError{Tool: id, Err: fmt.Errorf("activate: %w", err)}
	}
	r.active = id
	r.view.SetTitle(r.title(tool))
	r.record(id)
	return nil
}

// help fetches the tool's help document. A missing help document never
// fails the navigation.
func (r *Router) help(ctx context.Context, t Tool) string {
	doc, err := r.fetcher.Fetch(ctx, t.Help)
	if err != nil {
		log.Printf("nav  help       tool=%-8s  err=%v", t.ID, err)
		return ""
	}
	return `<details class="tool-help"><summary>Help</summary>` + doc + `</details>`
}

func (r *Router) title(t Tool) string {
	if r.siteName == "" {
		return t.Title
	}
	return t.Title + " | " + r.siteName
}

func (r *Router) handler(id string) Handler {
	if h, ok := r.handlers[id]; ok && h != nil {
		return h
	}
	return noopHandler{}
}

// record hands the visit to the recorder without blocking navigation.
func (r *Router) record(id string) {
	if r.recorder == nil {
		return
	}
	rec := r.recorder
	go func() {
		if err := rec.RecordVisit(context.Background(), id); err != nil {
			log.Printf("usage: record visit tool=%s err=%v", id, err)
		}
	}()
}

type noopHandler struct{}

func (noopHandler) Activate(context.Context, Container) error { return nil }
func (noopHandler) Teardown()                                 {}
