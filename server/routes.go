package server

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"toolshed/fragments"
	"toolshed/handlers"
	"toolshed/session"
	"toolshed/usage"
)

// routeDeps is everything the routes are wired to.
type routeDeps struct {
	sessions    *session.Manager
	sink        usage.Sink
	bandwidth   *handlers.BandwidthManager
	templates   *Templates
	static      fs.FS
	siteName    string
	defaultTool string
	theme       string
	faviconPath string
	maxUpload   int64
}

// newRouter builds the HTTP handler tree.
func newRouter(d routeDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	// Static assets
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(d.static))))
	r.Get("/favicon.ico", handlers.FaviconHandler(d.static, d.faviconPath))

	// Chroma stylesheet for help documents (generated once at startup)
	css := fragments.HighlightCSS(d.theme)
	r.Get("/highlight.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(css)
	})

	// Page shell and tool navigation
	r.Get("/", handlers.ShellHandler(d.sessions, d.siteName, d.defaultTool, d.templates))
	r.Get("/nav/{tool}", handlers.NavHandler(d.sessions))

	r.Route("/api", func(r chi.Router) {
		r.Post("/peel", handlers.PeelHandler())
		r.Get("/usage", handlers.UsageHandler(d.sink))

		rot := &handlers.RotatorHandlers{Sessions: d.sessions, MaxUpload: d.maxUpload}
		r.Route("/rotator", func(r chi.Router) {
			r.Get("/images", rot.Images)
			r.Post("/images", rot.Upload)
			r.Post("/images/{id}/rotate", rot.RotateOne)
			r.Get("/images/{id}/preview", rot.Preview)
			r.Post("/rotate", rot.RotateAll)

			// Downloads (bandwidth-limited)
			r.With(d.bandwidth.Middleware).Get("/images/{id}", rot.Download)
			r.With(d.bandwidth.Middleware).Get("/export", rot.Export)
		})
	})
	return r
}

// securityHeaders sets the response headers every page carries. Tool
// fragments are injected as markup only, so scripts are restricted to the
// site's own static files.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:; frame-ancestors 'none'")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), clipboard-write=(self)")
		next.ServeHTTP(w, r)
	})
}
