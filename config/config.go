// Package config handles all server configuration.
// Command-line flags take precedence; environment variables are used as
// fallback, then a .env file, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Usage backends.
const (
	UsageFile   = "file"
	UsageSQLite = "sqlite"
	UsageOff    = "off"
)

// Config holds the complete server configuration.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int
	// Title is the site name shown in the UI and appended to page titles.
	Title string
	// DefaultTool is shown when the location names no registered tool.
	DefaultTool string
	// FragmentsDir optionally overrides embedded tool fragments per file.
	FragmentsDir string
	// Theme is the Chroma syntax-highlighting theme used in help documents.
	Theme string
	// FaviconPath is an optional path to a custom favicon file.
	FaviconPath string
	// UsageBackend is one of UsageFile, UsageSQLite or UsageOff.
	UsageBackend string
	// UsagePath is the directory holding the JSON file for the file
	// backend, or the database file for the sqlite backend.
	UsagePath string
	// BandwidthLimit caps total download throughput in bytes per second.
	// 0 means unlimited.
	BandwidthLimit float64
	// MaxUpload is the largest accepted rotator upload request in bytes.
	MaxUpload int64
	// SessionTTL is how long an idle browser session is kept.
	SessionTTL time.Duration
}

// Flags holds raw flag values. An empty string means "not set", so the
// next source in the chain is consulted.
type Flags struct {
	Port         string
	Title        string
	DefaultTool  string
	FragmentsDir string
	Theme        string
	Favicon      string
	Usage        string
	UsagePath    string
	Bandwidth    string
	MaxUpload    string
	SessionTTL   string
	EnvFile      string
}

// Bind registers the server flags on fs.
func (f *Flags) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.Port, "port", "", "HTTP port to listen on (env: TOOLSHED_PORT, default: 7890)")
	fs.StringVar(&f.Title, "title", "", "Site title (env: TOOLSHED_TITLE, default: Dev Tools)")
	fs.StringVar(&f.DefaultTool, "default-tool", "", "Tool shown when none is selected (env: TOOLSHED_DEFAULT_TOOL, default: peeler)")
	fs.StringVar(&f.FragmentsDir, "fragments-dir", "", "Directory overriding embedded tool fragments (env: TOOLSHED_FRAGMENTS_DIR)")
	fs.StringVar(&f.Theme, "highlight-theme", "", "Chroma theme for help documents (env: TOOLSHED_HIGHLIGHT_THEME, default: catppuccin-mocha)")
	fs.StringVar(&f.Favicon, "favicon", "", "Path to a custom favicon file (env: TOOLSHED_FAVICON)")
	fs.StringVar(&f.Usage, "usage", "", "Usage backend: file, sqlite or off (env: TOOLSHED_USAGE, default: file)")
	fs.StringVar(&f.UsagePath, "usage-path", "", "Usage file directory or sqlite database path (env: TOOLSHED_USAGE_PATH, default: current working directory)")
	fs.StringVar(&f.Bandwidth, "bandwidth", "", "Total download bandwidth cap, e.g. 10mbps, 500kbps (env: TOOLSHED_BANDWIDTH, default: unlimited)")
	fs.StringVar(&f.MaxUpload, "max-upload", "", "Largest rotator upload, e.g. 64MiB (env: TOOLSHED_MAX_UPLOAD, default: 64MiB)")
	fs.StringVar(&f.SessionTTL, "session-ttl", "", "Idle time before a session is dropped (env: TOOLSHED_SESSION_TTL, default: 2h)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "File of KEY=value pairs loaded into the environment; never overrides variables already set")
}

// Load resolves f against the environment and defaults and returns a
// validated Config.
func Load(f Flags) (*Config, error) {
	if f.EnvFile != "" {
		if err := godotenv.Load(f.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("env file %q: %w", f.EnvFile, err)
		}
	}

	cfg := &Config{
		Title:        resolve(f.Title, "TOOLSHED_TITLE", "Dev Tools"),
		DefaultTool:  resolve(f.DefaultTool, "TOOLSHED_DEFAULT_TOOL", "peeler"),
		FragmentsDir: resolve(f.FragmentsDir, "TOOLSHED_FRAGMENTS_DIR", ""),
		Theme:        resolve(f.Theme, "TOOLSHED_HIGHLIGHT_THEME", "catppuccin-mocha"),
		FaviconPath:  resolve(f.Favicon, "TOOLSHED_FAVICON", ""),
	}

	// --- port ---
	portRaw := resolve(f.Port, "TOOLSHED_PORT", "7890")
	port, err := strconv.Atoi(portRaw)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", portRaw)
	}
	cfg.Port = port

	// --- fragments-dir ---
	if cfg.FragmentsDir != "" {
		info, err := os.Stat(cfg.FragmentsDir)
		if err != nil {
			return nil, fmt.Errorf("fragments dir %q: %w", cfg.FragmentsDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%q is not a directory", cfg.FragmentsDir)
		}
	}

	// --- favicon ---
	if cfg.FaviconPath != "" {
		info, err := os.Stat(cfg.FaviconPath)
		if err != nil {
			return nil, fmt.Errorf("favicon %q: %w", cfg.FaviconPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("favicon %q is a directory, not a file", cfg.FaviconPath)
		}
	}

	// --- usage ---
	cfg.UsageBackend = strings.ToLower(strings.TrimSpace(resolve(f.Usage, "TOOLSHED_USAGE", UsageFile)))
	switch cfg.UsageBackend {
	case UsageFile, UsageSQLite, UsageOff:
	default:
		return nil, fmt.Errorf("invalid usage backend %q: must be file, sqlite or off", cfg.UsageBackend)
	}
	cfg.UsagePath = resolve(f.UsagePath, "TOOLSHED_USAGE_PATH", "")
	if cfg.UsagePath == "" && cfg.UsageBackend != UsageOff {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not determine current working directory: %w", err)
		}
		cfg.UsagePath = cwd
		if cfg.UsageBackend == UsageSQLite {
			cfg.UsagePath = filepath.Join(cwd, "toolshed-usage.db")
		}
	}

	// --- bandwidth ---
	if bwRaw := resolve(f.Bandwidth, "TOOLSHED_BANDWIDTH", ""); bwRaw != "" {
		bps, err := parseBandwidth(bwRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid bandwidth %q: %w", bwRaw, err)
		}
		cfg.BandwidthLimit = bps
	}

	// --- max-upload ---
	upRaw := resolve(f.MaxUpload, "TOOLSHED_MAX_UPLOAD", "64MiB")
	up, err := humanize.ParseBytes(upRaw)
	if err != nil || up == 0 {
		return nil, fmt.Errorf("invalid max upload size %q", upRaw)
	}
	cfg.MaxUpload = int64(up)

	// --- session-ttl ---
	ttlRaw := resolve(f.SessionTTL, "TOOLSHED_SESSION_TTL", "2h")
	ttl, err := time.ParseDuration(ttlRaw)
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid session ttl %q", ttlRaw)
	}
	cfg.SessionTTL = ttl

	return cfg, nil
}

// resolve returns the flag value when set, else the environment value,
// else def.
func resolve(flagVal, envKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

// parseBandwidth converts a human-readable bandwidth string to bytes per
// second. Accepted units (case-insensitive): bps, kbps, mbps, gbps.
// A bare number is treated as bits per second.
//
// Examples: "10mbps", "500 kbps", "1gbps"
func parseBandwidth(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	i := strings.IndexFunc(s, func(r rune) bool { return r != '.' && !unicode.IsDigit(r) })
	if i == -1 {
		i = len(s)
	}
	if i == 0 {
		return 0, fmt.Errorf("no numeric value found")
	}
	val, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid number %q", s[:i])
	}

	var scale float64
	switch unit := strings.ToLower(strings.TrimSpace(s[i:])); unit {
	case "", "bps":
		scale = 1
	case "kbps":
		scale = 1_000
	case "mbps":
		scale = 1_000_000
	case "gbps":
		scale = 1_000_000_000
	default:
		return 0, fmt.Errorf("unknown unit %q (accepted: bps, kbps, mbps, gbps)", unit)
	}
	return val * scale / 8, nil
}
