package export

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docview/internal/dom"
	"github.com/dgallion1/docview/internal/offline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func renderedPage(t *testing.T, contentCSS string) string {
	t.Helper()
	p, err := dom.NewPage("Guide")
	require.NoError(t, err)
	require.NoError(t, dom.SetInnerHTML(p.Content,
		`<h1>Guide</h1><pre><code>make build</code><button class="copy-btn" type="button">Copy</button></pre>`))
	dom.SetAttr(p.ByID(dom.ContentThemeID), "href", contentCSS)
	dom.SetAttr(p.ByID(dom.HighlightThemeID), "href", "/assets/highlight-dark.css")
	return p.HTML()
}

func localCSS(path string) ([]byte, bool) {
	switch path {
	case "/assets/viewer.css":
		return []byte(".markdown-body{max-width:900px}"), true
	case "/assets/highlight-dark.css":
		return []byte(".chroma .k{color:#ff7b72}"), true
	}
	return nil, false
}

func TestWriteHTML_StripsScreenControls(t *testing.T) {
	p, err := dom.NewPage("Guide")
	require.NoError(t, err)
	require.NoError(t, dom.SetInnerHTML(p.Content,
		`<h1>Guide</h1><pre><code>make build</code><button class="copy-btn" type="button">Copy</button></pre>`))
	before := p.HTML()

	var out strings.Builder
	require.NoError(t, WriteHTML(context.Background(), &out, before, nil))
	got := out.String()

	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.Contains(t, got, "<title>Guide</title>")
	assert.Contains(t, got, "<code>make build</code>")
	assert.NotContains(t, got, "copy-btn")
	assert.NotContains(t, got, `id="searchInput"`)
	assert.NotContains(t, got, `rel="manifest"`)
	assert.Contains(t, got, `data-theme="dark"`)

	assert.Equal(t, before, p.HTML(), "the live page is untouched")
}

func TestWriteHTML_InlinesStylesheets(t *testing.T) {
	var hits atomic.Int32
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(".markdown-body{color:#e6edf3}"))
	}))
	defer cdn.Close()

	var out strings.Builder
	err := WriteHTML(context.Background(), &out, renderedPage(t, cdn.URL+"/github-markdown-dark.css"), &Stylesheets{
		Local:  localCSS,
		Client: cdn.Client(),
		Log:    testLogger(),
	})
	require.NoError(t, err)
	got := out.String()

	assert.NotContains(t, got, `href="/`)
	assert.NotContains(t, got, `rel="stylesheet"`)
	assert.Contains(t, got, ".markdown-body{max-width:900px}")
	assert.Contains(t, got, ".chroma .k{color:#ff7b72}")
	assert.Contains(t, got, ".markdown-body{color:#e6edf3}")
	assert.Contains(t, got, `<style data-href="/assets/highlight-dark.css" id="highlight-theme">`)
	assert.EqualValues(t, 1, hits.Load())
}

func TestWriteHTML_UnfetchableStylesheetGetsAbsoluteHref(t *testing.T) {
	base, err := url.Parse("http://localhost:8090")
	require.NoError(t, err)

	p, err := dom.NewPage("Guide")
	require.NoError(t, err)
	dom.SetAttr(p.ByID(dom.ContentThemeID), "href", "/themes/custom.css")

	var out strings.Builder
	err = WriteHTML(context.Background(), &out, p.HTML(), &Stylesheets{
		Local:  localCSS,
		Client: &http.Client{Transport: failingTransport{}},
		Base:   base,
		Log:    testLogger(),
	})
	require.NoError(t, err)
	got := out.String()

	assert.Contains(t, got, `href="http://localhost:8090/themes/custom.css"`)
	assert.NotContains(t, got, `href="/`)
	assert.NotContains(t, got, `id="highlight-theme"`, "links without an href are dropped")
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestWriteHTML_RemoteStylesheetsComeFromOfflineCache(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(".markdown-body{color:#1f2328}"))
	}))
	href := cdn.URL + "/github-markdown-light.css"

	store, err := offline.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	worker, err := offline.NewWorker(store, http.DefaultTransport, offline.Options{CacheName: "docview-v1"}, nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, worker.Install(context.Background(), []string{href}))
	cdn.Close()

	var out strings.Builder
	err = WriteHTML(context.Background(), &out, renderedPage(t, href), &Stylesheets{
		Local:  localCSS,
		Client: &http.Client{Transport: worker},
		Log:    testLogger(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), ".markdown-body{color:#1f2328}")
	assert.NotContains(t, out.String(), `rel="stylesheet"`)
}

func TestDefaultPDFOptions(t *testing.T) {
	opts := DefaultPDFOptions()
	assert.InDelta(t, 8.27, opts.PaperWidth, 0.001)
	assert.InDelta(t, 11.69, opts.PaperHeight, 0.001)
	assert.True(t, opts.PrintBackground)
	assert.Positive(t, opts.Timeout)
}
