package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"toolshed/config"
	"toolshed/fragments"
	"toolshed/handlers"
	"toolshed/router"
	"toolshed/session"
	"toolshed/usage"
)

const (
	manifestFile  = "tools.yaml"
	sweepInterval = time.Minute
	shutdownGrace = 10 * time.Second
)

// LoadRegistry reads the tool manifest from assets.
func LoadRegistry(assets fs.FS) (*router.Registry, error) {
	data, err := fs.ReadFile(assets, manifestFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", manifestFile, err)
	}
	return router.ParseManifest(data)
}

// App is a fully wired server, ready to be mounted on a listener.
type App struct {
	Handler  http.Handler
	Sessions *session.Manager
	Registry *router.Registry

	sink      usage.Sink
	stopWatch func()
}

// New wires the registry, fragment source, usage sink and sessions behind
// the HTTP routes. The session sweeper runs until ctx is done.
func New(ctx context.Context, cfg *config.Config, assets fs.FS) (*App, error) {
	tmpl, err := LoadTemplates(assets)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	reg, err := LoadRegistry(assets)
	if err != nil {
		return nil, err
	}
	if !reg.Has(cfg.DefaultTool) {
		return nil, fmt.Errorf("default tool %q is not registered (have: %s)", cfg.DefaultTool, strings.Join(reg.IDs(), ", "))
	}

	toolsFS, err := fs.Sub(assets, "templates/tools")
	if err != nil {
		return nil, fmt.Errorf("tools sub fs: %w", err)
	}
	src := fragments.New(toolsFS, fragments.Options{Dir: cfg.FragmentsDir, Theme: cfg.Theme})
	stopWatch, err := src.Watch()
	if err != nil {
		log.Printf("watcher: could not start fragment watcher: %v", err)
		stopWatch = func() {}
	}

	sink := openUsage(cfg)
	if added, err := sink.SyncKnownTools(ctx, reg.IDs()); err != nil {
		log.Printf("usage: sync known tools: %v", err)
	} else if len(added) > 0 {
		log.Printf("usage: new tools discovered: %s", strings.Join(added, ", "))
	}

	sessions, err := session.NewManager(session.Config{
		Registry: reg,
		Fetcher:  src,
		Recorder: sink,
		SiteName: cfg.Title,
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		stopWatch()
		sink.Close()
		return nil, err
	}
	sessions.StartSweeper(ctx, sweepInterval)

	static, err := fs.Sub(assets, "static")
	if err != nil {
		stopWatch()
		sink.Close()
		return nil, fmt.Errorf("static sub fs: %w", err)
	}

	h := newRouter(routeDeps{
		sessions:    sessions,
		sink:        sink,
		bandwidth:   handlers.NewBandwidthManager(cfg.BandwidthLimit),
		templates:   tmpl,
		static:      static,
		siteName:    cfg.Title,
		defaultTool: cfg.DefaultTool,
		theme:       cfg.Theme,
		faviconPath: cfg.FaviconPath,
		maxUpload:   cfg.MaxUpload,
	})
	return &App{Handler: h, Sessions: sessions, Registry: reg, sink: sink, stopWatch: stopWatch}, nil
}

// Close stops the fragment watcher and closes the usage sink.
func (a *App) Close() error {
	a.stopWatch()
	return a.sink.Close()
}

// openUsage opens the configured usage sink. The tools work without
// statistics, so a sink that cannot be opened is logged and replaced by
// one that discards everything.
func openUsage(cfg *config.Config) usage.Sink {
	var (
		sink usage.Sink
		err  error
	)
	switch cfg.UsageBackend {
	case config.UsageOff:
		return usage.Discard{}
	case config.UsageSQLite:
		if err = os.MkdirAll(filepath.Dir(cfg.UsagePath), 0o755); err == nil {
			sink, err = usage.OpenSQLite(cfg.UsagePath)
		}
	default:
		sink, err = usage.OpenFile(cfg.UsagePath)
	}
	if err != nil {
		log.Printf("usage: %s backend unavailable, statistics disabled: %v", cfg.UsageBackend, err)
		return usage.Discard{}
	}
	return sink
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg *config.Config, assets fs.FS) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := New(ctx, cfg, assets)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("usage: close: %v", err)
		}
	}()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logStartup(cfg, app.Registry, addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: app.Handler,

		// ReadHeaderTimeout is the Slowloris guard: a client trickling
		// headers is dropped after this deadline.
		ReadHeaderTimeout: 20 * time.Second,
		IdleTimeout:       120 * time.Second,

		// No WriteTimeout: throttled exports of large batches may take
		// longer than any fixed deadline.
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down, waiting up to %s for open requests", shutdownGrace)
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

// logStartup prints a summary of the active configuration.
func logStartup(cfg *config.Config, reg *router.Registry, addr string) {
	sep := "-------------------------------------------"
	log.Println(sep)
	log.Printf("  %s", cfg.Title)
	log.Println(sep)
	log.Printf("  %-18s %s", "Address:", "http://"+addr)
	log.Printf("  %-18s %s", "Default tool:", cfg.DefaultTool)
	log.Printf("  %-18s %s", "Highlight theme:", cfg.Theme)

	if cfg.FragmentsDir != "" {
		log.Printf("  %-18s %s", "Fragments:", cfg.FragmentsDir)
	} else {
		log.Printf("  %-18s %s", "Fragments:", "(embedded)")
	}

	if cfg.UsageBackend == config.UsageOff {
		log.Printf("  %-18s %s", "Usage:", "off")
	} else {
		log.Printf("  %-18s %s at %s", "Usage:", cfg.UsageBackend, cfg.UsagePath)
	}

	if cfg.BandwidthLimit > 0 {
		log.Printf("  %-18s %s", "Bandwidth limit:", handlers.HumanRate(cfg.BandwidthLimit))
	} else {
		log.Printf("  %-18s %s", "Bandwidth limit:", "unlimited")
	}
	log.Printf("  %-18s %s", "Max upload:", humanize.IBytes(uint64(cfg.MaxUpload)))
	log.Printf("  %-18s %s", "Session TTL:", cfg.SessionTTL)

	tools := reg.Tools()
	log.Printf("  %-18s %d", "Tools:", len(tools))
	for _, t := range tools {
		log.Printf("    #%-16s %s", t.ID, t.Title)
	}
	log.Println(sep)
}
