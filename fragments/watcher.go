package fragments

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Watch evicts cached fragments when files under the override directory
// change. It returns immediately; events are processed in a background
// goroutine until stop is called. Without an override directory there is
// nothing to watch and stop is a no-op.
func (s *Source) Watch() (stop func(), err error) {
	if s.dir == "" {
		return func() {}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watchRecursive(w, s.dir); err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				s.handleEvent(w, event)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watcher: %v", err)
			}
		}
	}()

	return func() { _ = w.Close() }, nil
}

// watchRecursive adds a watch for dir and every directory beneath it.
func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("watcher: skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			if errors.Is(err, syscall.ENOSPC) {
				log.Printf("watcher: inotify watch limit reached at %s; fragments below it refresh after %s", path, safetyTTL)
				return filepath.SkipAll
			}
			log.Printf("watcher: could not add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (s *Source) handleEvent(w *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := watchRecursive(w, event.Name); err != nil {
				log.Printf("watcher: could not watch new dir %s: %v", event.Name, err)
			}
			return
		}
	}

	rel, err := filepath.Rel(s.dir, event.Name)
	if err != nil {
		s.Purge()
		return
	}
	// A removed or renamed directory can hide many cached files; start over.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		s.Purge()
		log.Printf("watcher: %s %s, fragment cache purged", event.Op, rel)
		return
	}
	s.Invalidate(filepath.ToSlash(rel))
	log.Printf("watcher: %s %s, fragment evicted", event.Op, rel)
}
