package highlight

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
)

// Marker attributes set on processed code elements.
const (
	highlightedAttr = "data-highlighted"
	languageAttr    = "data-language"
	chromaClass     = "chroma"
)

var codeBlocks = cascadia.MustCompile("pre > code")

// Result summarizes one HighlightAll pass.
type Result struct {
	Highlighted int
	Failed      int
}

// Highlighter applies chroma syntax coloring to rendered code elements.
type Highlighter struct {
	formatter *chromahtml.Formatter
	log       *slog.Logger
}

// New creates a Highlighter emitting CSS classes (see WriteCSS).
func New(log *slog.Logger) *Highlighter {
	return &Highlighter{
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
		log: log,
	}
}

// HighlightAll colors every not yet highlighted code block under root.
// A block that fails keeps its escaped plain text.
func (h *Highlighter) HighlightAll(root *html.Node) Result {
	var res Result
	for _, code := range cascadia.QueryAll(root, codeBlocks) {
		if _, done := dom.Attr(code, highlightedAttr); done {
			continue
		}
		if err := h.highlight(code); err != nil {
			res.Failed++
			h.log.Warn("highlight failed", "language", LanguageOf(code), "error", err)
			continue
		}
		res.Highlighted++
	}
	return res
}

func (h *Highlighter) highlight(code *html.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("highlighter panic: %v", r)
		}
	}()

	text := dom.Text(code)
	lexer := lexerFor(LanguageOf(code), text)

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return fmt.Errorf("chroma tokenise: %w", err)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, styles.Fallback, iterator); err != nil {
		return fmt.Errorf("chroma format: %w", err)
	}
	nodes, err := html.ParseFragment(&buf, code)
	if err != nil {
		return fmt.Errorf("parse highlighted markup: %w", err)
	}

	// Only touch the DOM once everything above succeeded.
	dom.RemoveChildren(code)
	for _, n := range nodes {
		code.AppendChild(n)
	}
	dom.AddClass(code, chromaClass)
	dom.SetAttr(code, languageAttr, strings.ToLower(lexer.Config().Name))
	dom.SetAttr(code, highlightedAttr, "yes")
	return nil
}

// lexerFor resolves the declared language, then content analysis, then plain text.
func lexerFor(lang, text string) chroma.Lexer {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return lexer
}

// LanguageOf returns the language from a "language-X" class, or "".
func LanguageOf(code *html.Node) string {
	v, _ := dom.Attr(code, "class")
	for _, f := range strings.Fields(v) {
		if lang, ok := strings.CutPrefix(f, "language-"); ok {
			return lang
		}
	}
	return ""
}

// WriteCSS writes the stylesheet for the named chroma style.
func WriteCSS(w io.Writer, styleName string) error {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	f := chromahtml.New(chromahtml.WithClasses(true))
	if err := f.WriteCSS(w, style); err != nil {
		return fmt.Errorf("write %s css: %w", styleName, err)
	}
	return nil
}
