package session

import "sync"

// State is the display state of a content region.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

const (
	loadingHTML = `<div class="loading">Loading tool...</div>`
	errorHTML   = `<div class="tool-container">
    <div class="error-message">
        <h2>Error Loading Tool</h2>
        <p>Sorry, we couldn't load the requested tool. Please try again later.</p>
    </div>
</div>`
)

// Region mirrors one browser tab's content area and page chrome. It is the
// router.View a session's router writes to.
type Region struct {
	mu        sync.Mutex
	html      string
	title     string
	location  string
	highlight string
	state     State
}

// RegionSnapshot is a copy of a Region's fields.
type RegionSnapshot struct {
	HTML      string
	Title     string
	Location  string
	Highlight string
	State     State
}

// NewRegion returns an empty region.
func NewRegion() *Region {
	return &Region{state: StateEmpty}
}

func (r *Region) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html
}

func (r *Region) SetHTML(html string) {
	r.mu.Lock()
	r.html = html
	r.mu.Unlock()
}

func (r *Region) Highlight(tool string) {
	r.mu.Lock()
	r.highlight = tool
	r.mu.Unlock()
}

func (r *Region) SetLocation(tool string) {
	r.mu.Lock()
	r.location = tool
	r.mu.Unlock()
}

func (r *Region) SetTitle(title string) {
	r.mu.Lock()
	r.title = title
	r.mu.Unlock()
}

func (r *Region) ShowLoading()            { r.show(StateLoading, loadingHTML) }
func (r *Region) ShowContent(html string) { r.show(StateReady, html) }
func (r *Region) ShowError()              { r.show(StateError, errorHTML) }

func (r *Region) show(state State, html string) {
	r.mu.Lock()
	r.state = state
	r.html = html
	r.mu.Unlock()
}

// Snapshot returns the current region contents.
func (r *Region) Snapshot() RegionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegionSnapshot{
		HTML:      r.html,
		Title:     r.title,
		Location:  r.location,
		Highlight: r.highlight,
		State:     r.state,
	}
}
