// Package cli implements the toolshed command line.
package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolshed/config"
	"toolshed/server"
)

// NewRootCommand builds the command tree. assets holds the embedded
// templates, static files and tool manifest. Without a subcommand the
// root command serves the web UI.
func NewRootCommand(assets fs.FS, version, commit, date string) *cobra.Command {
	var flags config.Flags
	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(flags)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg, assets)
	}

	rootCmd := &cobra.Command{
		Use:   "toolshed",
		Short: "Small browser tools for everyday file chores",
		Long: `toolshed serves a single page of small developer tools:

  peeler   turns pasted file paths into bare file names
  rotator  rotates WebP images and exports them as a zip

Run without a subcommand to start the web server. The peel and rotate
subcommands run the same tools from a terminal.`,
		SilenceUsage: true,
		RunE:         serve,
	}
	flags.Bind(rootCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	flags.Bind(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newPeelCommand())
	rootCmd.AddCommand(newRotateCommand())
	rootCmd.AddCommand(newToolsCommand(assets))
	rootCmd.AddCommand(newVersionCommand(version, commit, date))
	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(assets fs.FS, version, commit, date string) int {
	if err := NewRootCommand(assets, version, commit, date).ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

func newToolsCommand(assets fs.FS) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := server.LoadRegistry(assets)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFRAGMENT\tHELP")
			for _, t := range reg.Tools() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Template, t.Help)
			}
			return tw.Flush()
		},
	}
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "toolshed %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func warnf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
