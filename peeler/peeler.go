// Package peeler reduces free-form text full of file paths to bare filenames.
package peeler

import (
	"regexp"
	"strings"
)

// tokenRe splits input into quoted runs or runs of non-whitespace.
// Whitespace covers ASCII space, tab, CR/LF, vertical tab and form feed,
// every Unicode space separator, and the byte order mark, so text pasted
// from a browser tokenizes the same way it would there.
var tokenRe = regexp.MustCompile(`'[^']*'|"[^"]*"|[^\t\n\v\f\r\p{Z}\x{FEFF}]+`)

var (
	// dirRe matches everything up to and including the last separator on
	// the token's first line. Line terminators are LF, CR, U+2028 and
	// U+2029, so a quoted token spanning several lines is only trimmed when
	// its first line holds a separator.
	dirRe = regexp.MustCompile(`^[^\n\r\x{2028}\x{2029}]*[\\/]`)
	extRe = regexp.MustCompile(`\.[^.]+$`)
)

// Tokens returns the path-like tokens found in input, in order.
func Tokens(input string) []string {
	return tokenRe.FindAllString(input, -1)
}

// Extract returns one filename per token of input, in input order.
// Duplicates and tokens that reduce to an empty name are kept.
func Extract(input string, keepExtension bool) []string {
	tokens := Tokens(input)
	names := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		names = append(names, Filename(tok, keepExtension))
	}
	return names
}

// Peel is Extract joined with newlines.
func Peel(input string, keepExtension bool) string {
	return strings.Join(Extract(input, keepExtension), "\n")
}

// Filename reduces a single token to its filename.
func Filename(token string, keepExtension bool) string {
	token = unquote(token)
	name := dirRe.ReplaceAllString(token, "")
	if !keepExtension {
		name = extRe.ReplaceAllString(name, "")
	}
	return name
}

// unquote drops at most one leading and one trailing quote character.
// The two ends are independent: `'abc"` loses both.
func unquote(s string) string {
	if s != "" && (s[0] == '\'' || s[0] == '"') {
		s = s[1:]
	}
	if n := len(s); n > 0 && (s[n-1] == '\'' || s[n-1] == '"') {
		s = s[:n-1]
	}
	return s
}
