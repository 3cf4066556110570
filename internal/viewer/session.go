// Package viewer owns one page and drives every component against it.
package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/clipboard"
	"github.com/dgallion1/docview/internal/diagram"
	"github.com/dgallion1/docview/internal/document"
	"github.com/dgallion1/docview/internal/dom"
	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/metrics"
	"github.com/dgallion1/docview/internal/outline"
	"github.com/dgallion1/docview/internal/prefs"
	"github.com/dgallion1/docview/internal/render"
	"github.com/dgallion1/docview/internal/search"
	"github.com/dgallion1/docview/internal/theme"
)

// FallbackHTML replaces the content when the document cannot be loaded.
const FallbackHTML = `<p class="load-error">Failed to load document.</p>`

// ErrNoDocument is returned by operations that need a loaded document.
var ErrNoDocument = errors.New("no document loaded")

// Loader fetches the source document.
type Loader interface {
	Load(ctx context.Context) (document.Document, error)
	URL() string
}

// Hook post-processes freshly inserted content.
type Hook func(ctx context.Context, root *html.Node)

// Deps are the collaborators a session drives.
type Deps struct {
	Loader      Loader
	Renderer    *render.Renderer
	Highlighter *highlight.Highlighter
	Diagrams    *diagram.Adapter
	Clipboard   clipboard.Clipboard
	Prefs       theme.Store
	Viewport    search.Viewport     // optional
	Styles      *export.Stylesheets // optional; inlines CSS into printed pages
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

// Options tune a session.
type Options struct {
	Title        string
	Themes       theme.Assets
	DefaultTheme theme.Name
	Debounce     time.Duration
	CopyFeedback time.Duration
}

// Session is the single owner of the page. All DOM mutation happens under
// mu, including timer callbacks.
type Session struct {
	ID string

	ctx      context.Context
	log      *slog.Logger
	loader   Loader
	renderer *render.Renderer
	metrics  *metrics.Metrics
	viewport search.Viewport
	styles   *export.Stylesheets
	debounce *search.Debouncer

	mu      sync.Mutex
	page    *dom.Page
	themes  *theme.Manager
	copier  *clipboard.Enhancer
	hooks   []Hook
	doc     *document.Document
	query   string
	pending *string // debounced query not yet applied
	matches *search.MatchSet
	seq     uint64
	closed  bool
}

// New builds the page shell, restores the theme preference and wires the
// post-render hooks. ctx bounds work started from timers.
func New(ctx context.Context, d Deps, opts Options) (*Session, error) {
	if d.Loader == nil || d.Renderer == nil {
		return nil, fmt.Errorf("viewer: loader and renderer are required")
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Prefs == nil {
		d.Prefs = prefs.NewMemory()
	}
	if d.Viewport == nil {
		d.Viewport = noViewport{}
	}
	if opts.Title == "" {
		opts.Title = "docview"
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = theme.Dark
	}

	page, err := dom.NewPage(opts.Title)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:       id,
		ctx:      ctx,
		log:      d.Log.With("session", id),
		loader:   d.Loader,
		renderer: d.Renderer,
		metrics:  d.Metrics,
		viewport: d.Viewport,
		styles:   d.Styles,
		debounce: search.NewDebouncer(opts.Debounce),
		page:     page,
	}

	s.themes, err = theme.NewManager(page, d.Prefs, opts.Themes, opts.DefaultTheme, s.log)
	if err != nil {
		return nil, fmt.Errorf("apply initial theme: %w", err)
	}

	if d.Highlighter != nil {
		s.hooks = append(s.hooks, func(_ context.Context, root *html.Node) {
			res := d.Highlighter.HighlightAll(root)
			s.metrics.BlockErrors("highlight", res.Failed)
		})
	}
	if d.Diagrams != nil {
		s.hooks = append(s.hooks, func(ctx context.Context, root *html.Node) {
			res := d.Diagrams.RenderDiagrams(ctx, root, s.themes.Current())
			s.metrics.BlockErrors("diagram", res.Failed)
		})
		s.themes.Subscribe(d.Diagrams.OnThemeChanged(ctx, func() *html.Node { return s.page.Content }))
	}
	if d.Clipboard != nil {
		s.copier = clipboard.NewEnhancer(d.Clipboard, s, opts.CopyFeedback, s.log)
		s.hooks = append(s.hooks, func(_ context.Context, root *html.Node) {
			s.copier.AttachCopyControls(root)
		})
	}
	return s, nil
}

// Load fetches the document and renders it, reapplying the current query.
// A pending debounced query is applied right away instead. On failure the
// content shows FallbackHTML and the error is returned.
func (s *Session) Load(ctx context.Context) error {
	doc, err := s.loader.Load(ctx)

	s.debounce.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.pending != nil {
		s.query = strings.TrimSpace(*s.pending)
		s.pending = nil
	}
	if err != nil {
		s.log.Error("document load failed", "url", s.loader.URL(), "error", err)
		s.metrics.Load("error")
		s.doc = nil
		s.matches = nil
		if setErr := dom.SetInnerHTML(s.page.Content, FallbackHTML); setErr != nil {
			return errors.Join(err, setErr)
		}
		s.metrics.Render("fallback")
		return fmt.Errorf("load document: %w", err)
	}

	s.metrics.Load("ok")
	s.doc = &doc
	s.log.Info("document loaded", "url", doc.URL, "bytes", len(doc.Source))
	return s.apply(ctx, s.query)
}

// Search schedules query after the debounce delay, replacing any pending
// search.
func (s *Session) Search(query string) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending = &query
	s.mu.Unlock()

	s.debounce.Schedule(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || seq != s.seq {
			return
		}
		s.pending = nil
		if err := s.apply(s.ctx, query); err != nil && !errors.Is(err, ErrNoDocument) {
			s.log.Warn("search failed", "error", err)
		}
	})
}

// SearchNow runs query immediately, dropping any pending search.
func (s *Session) SearchNow(query string) error {
	s.debounce.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = nil
	return s.apply(s.ctx, query)
}

// Clear cancels any pending search and restores the full document.
func (s *Session) Clear() error {
	return s.SearchNow("")
}

// Next moves the active match forward, wrapping around, and returns its
// index. It returns -1 when there are no matches.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.matches.Next(); m != nil {
		s.viewport.ScrollIntoView(m)
	}
	return s.matches.ActiveIndex()
}

// apply renders the view for (document, query). Caller holds mu.
func (s *Session) apply(ctx context.Context, query string) error {
	if s.doc == nil {
		return ErrNoDocument
	}
	query = strings.TrimSpace(query)
	s.query = query
	s.matches = nil

	if query == "" {
		return s.renderSource(ctx, s.doc.Source, "full")
	}

	kept := search.Filter(s.doc.Blocks(), query)
	source := search.NoResults
	if len(kept) > 0 {
		source = document.JoinBlocks(kept)
	}
	if err := s.renderSource(ctx, source, "filtered"); err != nil {
		return err
	}
	if len(kept) > 0 {
		s.matches = search.Mark(s.page.Content, query)
		if first := s.matches.Activate(0); first != nil {
			s.viewport.ScrollIntoView(first)
		}
	}
	s.metrics.Search(s.matches.Len())
	s.log.Debug("search applied", "query", query, "blocks", len(kept), "matches", s.matches.Len())
	return nil
}

// renderSource replaces the content with source rendered to HTML, then
// runs the post-render hooks in order.
func (s *Session) renderSource(ctx context.Context, source, kind string) error {
	out, err := s.renderer.Render(source)
	if err != nil {
		return fmt.Errorf("render %s view: %w", kind, err)
	}
	if err := dom.SetInnerHTML(s.page.Content, out); err != nil {
		return fmt.Errorf("insert %s view: %w", kind, err)
	}
	for _, h := range s.hooks {
		h(ctx, s.page.Content)
	}
	s.metrics.Render(kind)
	return nil
}

// ToggleTheme flips the theme; diagrams re-render with the new palette.
func (s *Session) ToggleTheme() (theme.Name, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.themes.ToggleTheme()
}

// ApplyTheme sets and persists a theme. Diagrams re-render when the theme
// actually changes.
func (s *Session) ApplyTheme(name theme.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.themes.SetTheme(name)
}

// Copy clicks the copy control of the i-th code block (0-based).
func (s *Session) Copy(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copier == nil {
		return fmt.Errorf("copy: %w", clipboard.ErrNotControl)
	}
	controls := s.copier.Controls(s.page.Content)
	if i < 0 || i >= len(controls) {
		return fmt.Errorf("copy block %d of %d: %w", i, len(controls), clipboard.ErrNotControl)
	}
	if err := s.copier.Click(controls[i]); err != nil {
		s.metrics.Copy("error")
		return err
	}
	s.metrics.Copy("ok")
	return nil
}

// Print writes a printable standalone copy of the page. Stylesheets are
// fetched after the lock is released.
func (s *Session) Print(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	page := s.page.HTML()
	s.mu.Unlock()
	return export.WriteHTML(ctx, w, page, s.styles)
}

// PrintPDF prints the page through headless Chrome. The lock is released
// while the browser runs.
func (s *Session) PrintPDF(ctx context.Context, opts export.PDFOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Print(ctx, &buf); err != nil {
		return nil, err
	}
	return export.PDF(ctx, buf.Bytes(), opts, s.log)
}

// ContentHTML renders the content root's children.
func (s *Session) ContentHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dom.InnerHTML(s.page.Content)
}

// Outline returns the heading tree of the loaded document.
func (s *Session) Outline() (*outline.Outline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return outline.Build(s.doc.Source), nil
}

// ContentText returns the text of the current view.
func (s *Session) ContentText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dom.Text(s.page.Content)
}

// PageHTML renders the whole page.
func (s *Session) PageHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.HTML()
}

// ActiveText returns the text of the active match, or "".
func (s *Session) ActiveText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.matches.Active(); m != nil {
		return dom.Text(m)
	}
	return ""
}

// State is a point-in-time view of the session.
type State struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Loaded      bool      `json:"loaded"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
	Theme       string    `json:"theme"`
	Query       string    `json:"query"`
	Matches     int       `json:"matches"`
	Active      int       `json:"active"`
	CodeBlocks  int       `json:"code_blocks"`
	PendingFind bool      `json:"pending_search"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:          s.ID,
		URL:         s.loader.URL(),
		Loaded:      s.doc != nil,
		Theme:       string(s.themes.Current()),
		Query:       s.query,
		Matches:     s.matches.Len(),
		Active:      s.matches.ActiveIndex(),
		PendingFind: s.debounce.Pending(),
	}
	if s.doc != nil {
		st.FetchedAt = s.doc.FetchedAt
	}
	if s.copier != nil {
		st.CodeBlocks = len(s.copier.Controls(s.page.Content))
	}
	return st
}

// AfterFunc runs f after d under the session lock. It lets timer-driven
// component work (copy feedback) mutate the page safely.
func (s *Session) AfterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		f()
	})
	return t.Stop
}

// Close drops pending work. Further timer callbacks are ignored.
func (s *Session) Close() {
	s.debounce.Cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type noViewport struct{}

func (noViewport) ScrollIntoView(*html.Node) {}
