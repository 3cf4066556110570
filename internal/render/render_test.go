package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
)

func TestRender_MermaidFenceBecomesDiagramContainer(t *testing.T) {
	src := "Intro\n\n```mermaid\ngraph TD\n  A-->B & C\n```\n"
	out, err := New(Options{}).Render(src)
	require.NoError(t, err)

	assert.Contains(t, out, `<div class="mermaid">`)
	assert.NotContains(t, out, "language-mermaid")

	// The container's text content must equal the raw block text exactly.
	page, err := dom.NewPage("t")
	require.NoError(t, err)
	require.NoError(t, dom.SetInnerHTML(page.Content, out))
	var container *html.Node
	for c := page.Content.FirstChild; c != nil; c = c.NextSibling {
		if dom.HasClass(c, DiagramClass) {
			container = c
		}
	}
	require.NotNil(t, container)
	assert.Equal(t, "graph TD\n  A-->B & C\n", dom.Text(container))
}

func TestRender_MermaidTagIsCaseInsensitive(t *testing.T) {
	out, err := New(Options{}).Render("```Mermaid\ngraph LR\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="mermaid">graph LR`)
}

func TestRender_CodeBlocksKeepLanguageTag(t *testing.T) {
	out, err := New(Options{}).Render("```go\nfunc main() {}\n```\n\n```\nplain <text>\n```\n")
	require.NoError(t, err)

	assert.Contains(t, out, `<pre><code class="language-go">func main() {}`)
	assert.Contains(t, out, "<pre><code>plain &lt;text&gt;\n</code></pre>")
}

func TestRender_HardLineBreaks(t *testing.T) {
	out, err := New(Options{}).Render("first line\nsecond line")
	require.NoError(t, err)
	assert.Contains(t, out, "<br>")
}

func TestRender_GFMExtensions(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~\n\n- [x] done\n"
	out, err := New(Options{}).Render(src)
	require.NoError(t, err)

	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<del>gone</del>")
	assert.Contains(t, out, `type="checkbox"`)
}

func TestRender_RawHTML(t *testing.T) {
	src := "<div class=\"note\">trusted</div>\n"

	out, err := New(Options{}).Render(src)
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="note">trusted</div>`)

	out, err = New(Options{Sanitize: true}).Render(src)
	require.NoError(t, err)
	assert.NotContains(t, out, `<div class="note">`)
	assert.True(t, strings.Contains(out, "raw HTML omitted"))
}

func TestRender_EmptyDocument(t *testing.T) {
	out, err := New(Options{}).Render("")
	require.NoError(t, err)
	assert.Empty(t, out)
}
