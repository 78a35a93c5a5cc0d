package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the name of the JSON file FileSink keeps in its directory.
const FileName = "toolshed-usage.json"

// persisted is the on-disk JSON structure.
type persisted struct {
	Visits     map[string]int64 `json:"tool_usage"`
	KnownTools []string         `json:"known_tools"`
	LastVisit  time.Time        `json:"last_visit"`
}

// FileSink keeps usage data in a JSON file, rewritten atomically after
// every change.
type FileSink struct {
	mu   sync.Mutex
	data persisted
	path string
	// writes is held from snapshot to rename so an older snapshot never
	// lands after a newer one.
	writes sync.Mutex
}

// OpenFile loads dir/toolshed-usage.json, creating it with empty counters
// when it does not exist so permission problems surface at startup. A file
// that cannot be parsed is logged and replaced by empty counters.
func OpenFile(dir string) (*FileSink, error) {
	s := &FileSink{
		path: filepath.Join(dir, FileName),
		data: persisted{Visits: map[string]int64{}},
	}

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", s.path, err)
		}
		if err := writeAtomic(s.path, s.data); err != nil {
			return nil, fmt.Errorf("create %s: %w", s.path, err)
		}
		return s, nil
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&s.data); err != nil {
		log.Printf("usage: could not parse %s: %v, starting from zero", s.path, err)
		s.data = persisted{}
	}
	if s.data.Visits == nil {
		s.data.Visits = map[string]int64{}
	}
	return s, nil
}

// Path returns the JSON file location.
func (s *FileSink) Path() string { return s.path }

// RecordVisit increments the counter for tool and persists the totals.
func (s *FileSink) RecordVisit(_ context.Context, tool string) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	s.mu.Lock()
	s.data.Visits[tool]++
	s.data.LastVisit = time.Now().UTC()
	snap := s.copyLocked()
	s.mu.Unlock()
	return writeAtomic(s.path, snap)
}

// SyncKnownTools stores ids as the known tool list.
func (s *FileSink) SyncKnownTools(_ context.Context, ids []string) ([]string, error) {
	s.writes.Lock()
	defer s.writes.Unlock()
	s.mu.Lock()
	fresh := newTools(s.data.KnownTools, ids)
	s.data.KnownTools = append([]string(nil), ids...)
	snap := s.copyLocked()
	s.mu.Unlock()
	return fresh, writeAtomic(s.path, snap)
}

// Snapshot returns a copy of the current counters.
func (s *FileSink) Snapshot(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.copyLocked()
	return Snapshot(snap), nil
}

// Close is a no-op; every change is already on disk.
func (s *FileSink) Close() error { return nil }

func (s *FileSink) copyLocked() persisted {
	visits := make(map[string]int64, len(s.data.Visits))
	for k, v := range s.data.Visits {
		visits[k] = v
	}
	return persisted{
		Visits:     visits,
		KnownTools: append([]string(nil), s.data.KnownTools...),
		LastVisit:  s.data.LastVisit,
	}
}

// writeAtomic writes data to a temp file in the same directory and renames
// it over filePath.
func writeAtomic(filePath string, data persisted) error {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".toolshed-usage-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := json.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not rename %s to %s: %w", tmpName, filePath, err)
	}
	return nil
}
