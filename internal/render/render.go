package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// DiagramLanguage is the fence tag that turns a code block into a diagram container.
const DiagramLanguage = "mermaid"

// DiagramClass is the class of the emitted diagram container.
const DiagramClass = "mermaid"

// Options controls Markdown conversion.
type Options struct {
	// Sanitize drops raw HTML from the source instead of passing it through.
	Sanitize bool
}

// Renderer converts Markdown to HTML using goldmark.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer with GitHub-flavored extensions and hard line breaks.
func New(opts Options) *Renderer {
	rendererOpts := []renderer.Option{
		html.WithHardWraps(),
	}
	if !opts.Sanitize {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(rendererOpts...),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(&fencedCodeRenderer{}, 100)),
		),
	)
	return &Renderer{md: md}
}

// Render converts a Markdown document to an HTML fragment.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// fencedCodeRenderer emits diagram containers for mermaid fences and
// language-tagged code elements for everything else.
type fencedCodeRenderer struct{}

func (r *fencedCodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *fencedCodeRenderer) renderFencedCodeBlock(
	w util.BufWriter, source []byte, node ast.Node, entering bool,
) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ast.FencedCodeBlock)

	lang := ""
	if n.Info != nil {
		lang = strings.TrimSpace(string(n.Language(source)))
	}

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	if strings.EqualFold(lang, DiagramLanguage) {
		_, _ = w.WriteString(`<div class="` + DiagramClass + `">`)
		_, _ = w.Write(util.EscapeHTML(code.Bytes()))
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString("<pre><code")
	if lang != "" {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML([]byte(lang)))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	_, _ = w.Write(util.EscapeHTML(code.Bytes()))
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkContinue, nil
}
