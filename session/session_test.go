package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"toolshed/rotator"
	"toolshed/router"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	reg, err := router.NewRegistry(
		router.Tool{ID: "peeler", Title: "Peeled Files", Template: "peeler.html"},
		router.Tool{ID: "rotator", Title: "WebP Rotator", Template: "rotator.html"},
	)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(Config{
		Registry: reg,
		Fetcher: router.FetcherFunc(func(_ context.Context, loc string) (string, error) {
			return "<div>" + loc + "</div>", nil
		}),
		SiteName: "Dev Tools",
		TTL:      time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewManagerRejectsToolWithoutHandler(t *testing.T) {
	reg, _ := router.NewRegistry(router.Tool{ID: "mystery", Template: "m.html"})
	if _, err := NewManager(Config{Registry: reg}); err == nil {
		t.Fatal("expected error for tool without handler")
	}
}

func TestCreateAndGet(t *testing.T) {
	m := testManager(t)
	s := m.Create()
	if s.ID == "" {
		t.Fatal("empty session id")
	}
	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v", s.ID, got, ok)
	}
	if _, ok := m.Get("nope"); ok {
		t.Error("Get returned a session for an unknown id")
	}
	if snap := s.Region.Snapshot(); snap.State != StateEmpty {
		t.Errorf("new region state = %s", snap.State)
	}
}

func TestNavigateWritesRegion(t *testing.T) {
	m := testManager(t)
	s := m.Create()
	if err := s.Router.Navigate(context.Background(), "peeler"); err != nil {
		t.Fatal(err)
	}
	snap := s.Region.Snapshot()
	if snap.State != StateReady {
		t.Errorf("state = %s, want ready", snap.State)
	}
	if snap.HTML != "<div>peeler.html</div>" {
		t.Errorf("html = %q", snap.HTML)
	}
	if snap.Title != "Peeled Files | Dev Tools" {
		t.Errorf("title = %q", snap.Title)
	}
	if snap.Location != "peeler" || snap.Highlight != "peeler" {
		t.Errorf("location=%q highlight=%q", snap.Location, snap.Highlight)
	}
}

func TestRegionErrorPanel(t *testing.T) {
	r := NewRegion()
	r.ShowLoading()
	if !strings.Contains(r.HTML(), "Loading tool...") {
		t.Errorf("loading html = %q", r.HTML())
	}
	r.ShowError()
	snap := r.Snapshot()
	if snap.State != StateError || !strings.Contains(snap.HTML, "Error Loading Tool") {
		t.Errorf("error snapshot = %+v", snap)
	}
}

func TestRotatorActivationResetsImages(t *testing.T) {
	m := testManager(t)
	s := m.Create()
	ctx := context.Background()
	if err := s.Router.Navigate(ctx, "rotator"); err != nil {
		t.Fatal(err)
	}

	set := rotator.NewSet()
	s.ReplaceImages(set)
	var seen *rotator.Set
	s.Images(func(cur *rotator.Set) error { seen = cur; return nil })
	if seen != set {
		t.Fatal("ReplaceImages did not take effect")
	}

	// Leaving and coming back gives the panel a fresh set.
	if err := s.Router.Navigate(ctx, "peeler"); err != nil {
		t.Fatal(err)
	}
	if err := s.Router.Navigate(ctx, "rotator"); err != nil {
		t.Fatal(err)
	}
	s.Images(func(cur *rotator.Set) error { seen = cur; return nil })
	if seen == set {
		t.Error("rotator activation reused the previous set")
	}
	if seen.Len() != 0 {
		t.Errorf("fresh set has %d images", seen.Len())
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	idle := m.Create()
	now = now.Add(50 * time.Second)
	fresh := m.Create()
	now = now.Add(30 * time.Second)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, ok := m.Get(idle.ID); ok {
		t.Error("idle session survived sweep")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("fresh session was swept")
	}
}

func TestGetRefreshesIdleTimer(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	s := m.Create()
	now = now.Add(50 * time.Second)
	m.Get(s.ID)
	now = now.Add(50 * time.Second)
	if n := m.Sweep(); n != 0 {
		t.Errorf("Sweep removed %d recently used sessions", n)
	}
}
