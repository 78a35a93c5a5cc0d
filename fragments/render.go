package fragments

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// renderer turns fragment sources into HTML ready for the content region.
type renderer struct {
	theme  string
	policy *bluemonday.Policy
	md     goldmark.Markdown
}

func newRenderer(theme string) *renderer {
	if theme == "" {
		theme = "catppuccin-mocha"
	}
	return &renderer{
		theme:  theme,
		policy: fragmentPolicy(),
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
				extension.Typographer,
				highlighting.NewHighlighting(
					highlighting.WithStyle(theme),
					highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
				),
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
	}
}

// render converts src according to the extension of name. HTML from a
// trusted (embedded) source is passed through unchanged; everything else is
// sanitized before it can reach a page.
func (r *renderer) render(name string, src []byte, trusted bool) (string, error) {
	var out string
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		if trusted {
			return string(src), nil
		}
		out = string(src)
	case ".md", ".markdown":
		var buf bytes.Buffer
		if err := r.md.Convert(src, &buf); err != nil {
			return "", fmt.Errorf("markdown render: %w", err)
		}
		out = buf.String()
	case ".org":
		doc := org.New().Parse(bytes.NewReader(src), name)
		w := org.NewHTMLWriter()
		w.HighlightCodeBlock = func(source, lang string, inline bool, _ map[string]string) string {
			return r.highlight(source, lang)
		}
		html, err := doc.Write(w)
		if err != nil {
			return "", fmt.Errorf("org render: %w", err)
		}
		out = html
	default:
		return "", fmt.Errorf("no renderer for %q", name)
	}
	return r.policy.Sanitize(out), nil
}

// highlight runs source through the Chroma lexer for lang. It returns an
// empty string on failure, which makes go-org fall back to a plain block.
func (r *renderer) highlight(source, lang string) string {
	l := lexers.Get(lang)
	if l == nil {
		l = lexers.Fallback
	}
	l = chroma.Coalesce(l)

	style := styles.Get(r.theme)
	if style == nil {
		style = styles.Fallback
	}

	it, err := l.Tokenise(nil, source)
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).Format(&buf, style, it); err != nil {
		return ""
	}
	return buf.String()
}

// HighlightCSS returns the stylesheet for the Chroma classes used in
// rendered help documents.
func HighlightCSS(theme string) []byte {
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buf, style); err != nil {
		return nil
	}
	return buf.Bytes()
}

// fragmentPolicy allows document markup plus the form controls the tool
// panels are built from. Scripts, styles, inline event handlers and
// javascript: URLs are always stripped.
func fragmentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"article", "aside", "blockquote", "br", "caption", "code",
		"dd", "details", "div", "dl", "dt",
		"em", "figure", "figcaption",
		"h1", "h2", "h3", "h4", "h5", "h6", "hr",
		"kbd", "li", "main", "ol", "p", "pre",
		"section", "small", "span", "strong", "sub", "summary", "sup",
		"table", "tbody", "td", "tfoot", "th", "thead", "tr", "ul",
		"b", "i", "s", "u", "del", "mark",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)

	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowDataURIImages()

	// Tool panels.
	p.AllowElements("form", "label", "button", "textarea", "input", "fieldset", "legend")
	p.AllowAttrs("type", "name", "value", "checked", "disabled", "accept", "multiple",
		"placeholder", "readonly", "rows", "cols").OnElements("input", "button", "textarea")
	p.AllowAttrs("for").OnElements("label")
	p.AllowDataAttributes()

	p.AllowAttrs("id", "class", "lang", "title", "role", "hidden").Globally()
	p.AllowAttrs("align", "colspan", "rowspan", "scope").OnElements("td", "th")
	p.AllowAttrs("start", "type").OnElements("ol")
	p.AllowAttrs("open").OnElements("details")

	return p
}
