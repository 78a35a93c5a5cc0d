package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"toolshed/peeler"
)

// Clipboard access, replaceable in tests.
var (
	readClipboard  = clipboard.ReadAll
	writeClipboard = clipboard.WriteAll
)

const clipboardDenied = "could not access clipboard, paste the text manually"

type peelOptions struct {
	keepExt bool
	paste   bool
	copy    bool
	tokens  bool
}

func newPeelCommand() *cobra.Command {
	var opts peelOptions
	cmd := &cobra.Command{
		Use:   "peel [file...]",
		Short: "Print the bare file names of the paths in the input",
		Long: `Reads text containing file paths and prints one file name per path.

Paths are separated by whitespace; paths with spaces may be wrapped in single
or double quotes. Input comes from the named files, the clipboard (--paste)
or standard input.

Examples:
  find . -name '*.go' | toolshed peel
  toolshed peel --keep-ext --paste --copy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeel(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.keepExt, "keep-ext", "k", false, "keep the file extension")
	cmd.Flags().BoolVarP(&opts.paste, "paste", "p", false, "read input from the clipboard")
	cmd.Flags().BoolVarP(&opts.copy, "copy", "c", false, "also copy the result to the clipboard")
	cmd.Flags().BoolVar(&opts.tokens, "tokens", false, "print the raw path tokens instead of file names")
	return cmd
}

func runPeel(cmd *cobra.Command, args []string, opts peelOptions) error {
	input, err := peelInput(cmd, args, opts.paste)
	if err != nil {
		return err
	}

	var lines []string
	if opts.tokens {
		lines = peeler.Tokens(input)
	} else {
		lines = peeler.Extract(input, opts.keepExt)
	}
	out := strings.Join(lines, "\n")
	if len(lines) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}

	if opts.copy {
		if err := writeClipboard(out); err != nil {
			warnf(cmd, "could not copy result to clipboard: %v", err)
		}
	}
	return nil
}

// peelInput gathers the text to peel. A clipboard that cannot be read is
// reported and standard input is used instead.
func peelInput(cmd *cobra.Command, args []string, paste bool) (string, error) {
	if paste {
		text, err := readClipboard()
		if err == nil {
			return text, nil
		}
		warnf(cmd, clipboardDenied)
		return readAll(cmd.InOrStdin())
	}
	if len(args) == 0 {
		return readAll(cmd.InOrStdin())
	}

	parts := make([]string, 0, len(args))
	for _, name := range args {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
