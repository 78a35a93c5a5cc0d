package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"toolshed/models"
	"toolshed/router"
	"toolshed/session"
)

// ShellHandler renders the page shell. The content region is pre-filled
// with the session's active tool so a reload keeps what was on screen.
func ShellHandler(sessions *session.Manager, siteName, defaultTool string, tmpl interface {
	ExecuteShell(http.ResponseWriter, *models.Shell) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := currentSession(sessions, w, r)
		active := s.Router.Active()

		data := &models.Shell{
			Title:       siteName,
			SiteName:    siteName,
			DefaultTool: defaultTool,
			ActiveTool:  active,
		}
		for _, t := range sessions.Registry().Tools() {
			data.Tools = append(data.Tools, models.ToolLink{
				ID:     t.ID,
				Title:  t.Title,
				Href:   "#" + t.ID,
				Active: t.ID == active,
			})
		}
		if active != "" {
			snap := s.Region.Snapshot()
			data.Title = snap.Title
			// Region content is either an embedded fragment or one that
			// passed the sanitizer.
			data.Content = template.HTML(snap.HTML)
		}

		if err := tmpl.ExecuteShell(w, data); err != nil {
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	}
}

// NavHandler makes {tool} the session's active tool and answers with the
// content region. A request for the tool that is already active answers
// with the current region and X-Tool-Current set.
func NavHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := currentSession(sessions, w, r)
		id := chi.URLParam(r, "tool")

		start := time.Now()
		err := s.Router.Navigate(r.Context(), id)
		elapsed := time.Since(start).Round(time.Millisecond)

		var loadErr *router.LoadError
		switch {
		case err == nil:
			log.Printf("nav  load       tool=%-8s  duration=%s", id, elapsed)
			writeRegion(w, s.Region.Snapshot(), http.StatusOK)
		case errors.Is(err, router.ErrAlreadyActive):
			// Nothing was fetched. Another tab sharing the session may have
			// left the caller's page behind, so it still gets the region.
			w.Header().Set("X-Tool-Current", "true")
			writeRegion(w, s.Region.Snapshot(), http.StatusOK)
		case errors.Is(err, router.ErrUnknownTool):
			http.Error(w, "Unknown tool", http.StatusNotFound)
		case errors.Is(err, router.ErrSuperseded):
			log.Printf("nav  superseded tool=%-8s  duration=%s", id, elapsed)
			http.Error(w, "Navigation superseded", http.StatusConflict)
		case errors.As(err, &loadErr):
			log.Printf("nav  error      tool=%-8s  err=%v", id, loadErr.Err)
			writeRegion(w, s.Region.Snapshot(), http.StatusBadGateway)
		default:
			log.Printf("nav  error      tool=%-8s  err=%v", id, err)
			http.Error(w, "Navigation failed", http.StatusInternalServerError)
		}
	}
}

func writeRegion(w http.ResponseWriter, snap session.RegionSnapshot, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Tool-Location", snap.Location)
	if snap.Title != "" && snap.State == session.StateReady {
		w.Header().Set("X-Tool-Title", snap.Title)
	}
	w.WriteHeader(status)
	w.Write([]byte(snap.HTML))
}
