// Package session keeps the per-browser state of the tool hub: the content
// region, the router driving it and the rotator's loaded images.
//
// Sessions live in memory only and disappear after an idle timeout.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"toolshed/rotator"
	"toolshed/router"
)

// Session is one browser's state.
type Session struct {
	ID     string
	Region *Region
	Router *router.Router

	mu       sync.Mutex
	images   *rotator.Set
	lastSeen time.Time
}

// Images runs fn with the session's rotator set held exclusively.
func (s *Session) Images(fn func(*rotator.Set) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.images)
}

// ReplaceImages swaps in a freshly loaded batch.
func (s *Session) ReplaceImages(set *rotator.Set) {
	s.mu.Lock()
	s.images = set
	s.mu.Unlock()
}

func (s *Session) resetImages() {
	s.mu.Lock()
	s.images = rotator.NewSet()
	s.mu.Unlock()
}

// Config holds what every session's router is built from.
type Config struct {
	Registry *router.Registry
	Fetcher  router.Fetcher
	Recorder router.Recorder
	SiteName string
	// TTL is how long an idle session is kept.
	TTL time.Duration
}

// Manager owns all live sessions.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager checks that every registered tool has a handler and returns an
// empty manager.
func NewManager(cfg Config) (*Manager, error) {
	for _, id := range cfg.Registry.IDs() {
		if _, ok := toolHandlers[id]; !ok {
			return nil, fmt.Errorf("tool %q has no handler", id)
		}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}, nil
}

// Registry returns the tool registry shared by all sessions.
func (m *Manager) Registry() *router.Registry { return m.cfg.Registry }

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Region:   NewRegion(),
		images:   rotator.NewSet(),
		lastSeen: m.now(),
	}
	s.Router = router.New(router.Config{
		Registry: m.cfg.Registry,
		Handlers: bindHandlers(s),
		View:     s.Region,
		Fetcher:  m.cfg.Fetcher,
		Recorder: m.cfg.Recorder,
		SiteName: m.cfg.SiteName,
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the live session with id and marks it as seen.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.lastSeen = m.now()
	s.mu.Unlock()
	return s, true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// it removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.TTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					log.Printf("session: swept %d idle session(s), %d live", n, m.Len())
				}
			}
		}
	}()
}
