// Package export produces printable output from a rendered page.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/clipboard"
	"github.com/dgallion1/docview/internal/dom"
)

// Interactive chrome that has no place on paper.
var screenOnly = cascadia.MustCompile(`header.toolbar, button.` + clipboard.ControlClass + `, link[rel="manifest"]`)

var stylesheetLinks = cascadia.MustCompile(`link[rel~="stylesheet"]`)

// defaultMaxStylesheet bounds one fetched stylesheet.
const defaultMaxStylesheet = 4 << 20

// Stylesheets resolves the page's stylesheet links so a printed page carries
// its CSS with it.
type Stylesheets struct {
	Local    func(path string) ([]byte, bool) // Stylesheets generated in process, by root-relative path
	Client   *http.Client                     // Fetches everything else; http.DefaultClient when nil
	Base     *url.URL                         // Resolves relative hrefs that Local does not serve
	MaxBytes int64
	Log      *slog.Logger
}

// Fetch returns the CSS behind href.
func (s *Stylesheets) Fetch(ctx context.Context, href string) ([]byte, error) {
	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet href %q: %w", href, err)
	}
	if !u.IsAbs() {
		if s.Local != nil && strings.HasPrefix(u.Path, "/") {
			if css, ok := s.Local(u.Path); ok {
				return css, nil
			}
		}
		if s.Base == nil {
			return nil, fmt.Errorf("stylesheet %q: relative href without base URL", href)
		}
		u = s.Base.ResolveReference(u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stylesheet %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stylesheet %s: status %d", u, resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = defaultMaxStylesheet
	}
	css, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read stylesheet %s: %w", u, err)
	}
	return css, nil
}

// absolute returns href resolved against Base, or href unchanged.
func (s *Stylesheets) absolute(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() || s.Base == nil {
		return href
	}
	return s.Base.ResolveReference(u).String()
}

// WriteHTML writes a standalone copy of page (a rendered document) with the
// toolbar and copy controls removed. With styles set, stylesheet links are
// replaced by <style> elements holding their CSS; a link whose CSS cannot be
// fetched keeps an absolute href.
func WriteHTML(ctx context.Context, w io.Writer, page string, styles *Stylesheets) error {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("reparse page: %w", err)
	}
	for _, n := range cascadia.QueryAll(doc, screenOnly) {
		n.Parent.RemoveChild(n)
	}
	if styles != nil {
		for _, link := range cascadia.QueryAll(doc, stylesheetLinks) {
			styles.inline(ctx, link)
		}
	}
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}

func (s *Stylesheets) inline(ctx context.Context, link *html.Node) {
	href, _ := dom.Attr(link, "href")
	if href == "" {
		link.Parent.RemoveChild(link)
		return
	}
	css, err := s.Fetch(ctx, href)
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("stylesheet not inlined", "href", href, "error", err)
		}
		dom.SetAttr(link, "href", s.absolute(href))
		return
	}

	style := dom.NewElement("style", html.Attribute{Key: "data-href", Val: href})
	if id, ok := dom.Attr(link, "id"); ok {
		dom.SetAttr(style, "id", id)
	}
	style.AppendChild(dom.NewText(string(css)))
	link.Parent.InsertBefore(style, link)
	link.Parent.RemoveChild(link)
}

// PDFOptions contains configuration for PDF generation.
type PDFOptions struct {
	// Paper dimensions in inches (A4: 8.27 x 11.69)
	PaperWidth  float64
	PaperHeight float64

	// Margins in inches
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	PrintBackground bool
	Scale           float64

	ExecPath string        // Chrome binary; empty uses chromedp's lookup
	Settle   time.Duration // Wait after load for stylesheets and fonts
	Timeout  time.Duration
}

// DefaultPDFOptions returns A4 options.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PaperWidth:      8.27,
		PaperHeight:     11.69,
		MarginTop:       0.59,
		MarginBottom:    0.59,
		MarginLeft:      0.79,
		MarginRight:     0.79,
		PrintBackground: true,
		Scale:           1.0,
		Settle:          500 * time.Millisecond,
		Timeout:         60 * time.Second,
	}
}

// PDF prints a standalone page (as produced by WriteHTML) through headless
// Chrome. Stylesheets should already be inlined: the page is opened from a
// file URL, where root-relative links do not resolve.
func PDF(ctx context.Context, page []byte, opts PDFOptions, log *slog.Logger) ([]byte, error) {
	start := time.Now()

	// A file avoids data URL size limits.
	tmp, err := os.CreateTemp("", "docview-print-*.html")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPDFOptions().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("headless", true),
		chromedp.WSURLReadTimeout(60*time.Second),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)
	defer browserCancel()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+tmpPath),
		chromedp.WaitReady("body"),
		chromedp.Sleep(opts.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = cdppage.PrintToPDF().
				WithPaperWidth(opts.PaperWidth).
				WithPaperHeight(opts.PaperHeight).
				WithMarginTop(opts.MarginTop).
				WithMarginBottom(opts.MarginBottom).
				WithMarginLeft(opts.MarginLeft).
				WithMarginRight(opts.MarginRight).
				WithPrintBackground(opts.PrintBackground).
				WithScale(opts.Scale).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}

	log.Info("pdf exported", "bytes", len(pdf), "duration_ms", time.Since(start).Milliseconds())
	return pdf, nil
}
