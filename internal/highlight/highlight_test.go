package highlight

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contentWith(t *testing.T, markup string) *html.Node {
	t.Helper()
	page, err := dom.NewPage("test")
	require.NoError(t, err)
	require.NoError(t, dom.SetInnerHTML(page.Content, markup))
	return page.Content
}

func firstCode(t *testing.T, root *html.Node) *html.Node {
	t.Helper()
	code := cascadia.Query(root, cascadia.MustCompile("code"))
	require.NotNil(t, code)
	return code
}

func TestHighlightAll_KnownLanguage(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	root := contentWith(t, `<pre><code class="language-go">`+html.EscapeString(src)+`</code></pre>`)

	res := New(testLogger()).HighlightAll(root)
	assert.Equal(t, Result{Highlighted: 1}, res)

	code := firstCode(t, root)
	assert.Equal(t, src, dom.Text(code), "highlighting must preserve the text")
	assert.True(t, dom.HasClass(code, "chroma"))
	lang, _ := dom.Attr(code, "data-language")
	assert.Equal(t, "go", lang)
	assert.Contains(t, dom.InnerHTML(code), "<span")
}

func TestHighlightAll_UnknownLanguageStillReadable(t *testing.T) {
	src := "some <weird> & text\n"
	root := contentWith(t, `<pre><code class="language-no-such-lang">`+html.EscapeString(src)+`</code></pre>`)

	res := New(testLogger()).HighlightAll(root)
	assert.Equal(t, 1, res.Highlighted)
	assert.Zero(t, res.Failed)
	assert.Equal(t, src, dom.Text(firstCode(t, root)))
}

func TestHighlightAll_NoLanguage(t *testing.T) {
	src := "#!/bin/sh\necho hi\n"
	root := contentWith(t, `<pre><code>`+html.EscapeString(src)+`</code></pre>`)

	New(testLogger()).HighlightAll(root)
	assert.Equal(t, src, dom.Text(firstCode(t, root)))
}

func TestHighlightAll_Idempotent(t *testing.T) {
	root := contentWith(t, `<pre><code class="language-python">print("x")
</code></pre><pre><code class="language-js">let a = 1;
</code></pre>`)
	h := New(testLogger())

	first := h.HighlightAll(root)
	assert.Equal(t, 2, first.Highlighted)
	before := dom.InnerHTML(root)

	second := h.HighlightAll(root)
	assert.Equal(t, Result{}, second)
	assert.Equal(t, before, dom.InnerHTML(root))
}

func TestHighlightAll_IgnoresInlineCode(t *testing.T) {
	root := contentWith(t, `<p>use <code>go test</code></p>`)
	res := New(testLogger()).HighlightAll(root)
	assert.Equal(t, Result{}, res)
}

func TestLanguageOf(t *testing.T) {
	code := dom.NewElement("code", html.Attribute{Key: "class", Val: "hljs language-rust"})
	assert.Equal(t, "rust", LanguageOf(code))
	assert.Equal(t, "", LanguageOf(dom.NewElement("code")))
}

func TestWriteCSS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSS(&buf, "github-dark"))
	assert.Contains(t, buf.String(), ".chroma")

	buf.Reset()
	require.NoError(t, WriteCSS(&buf, "definitely-not-a-style"))
	assert.NotEmpty(t, buf.String())
}
