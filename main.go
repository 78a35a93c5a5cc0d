// toolshed – a small hub of browser tools for everyday file chores.
package main

import (
	"embed"
	"os"

	"toolshed/cli"
)

//go:embed templates static tools.yaml
var embeddedFS embed.FS

// Build variables set by ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(embeddedFS, version, commit, date))
}
