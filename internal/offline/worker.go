package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dgallion1/docview/internal/metrics"
)

// CacheHeader is set on responses served from the cache.
const CacheHeader = "X-Docview-Cache"

// Policy selects how a request is served.
type Policy int

const (
	CacheFirst Policy = iota
	NetworkFirst
)

func (p Policy) String() string {
	if p == NetworkFirst {
		return "network_first"
	}
	return "cache_first"
}

// Options configures a Worker.
type Options struct {
	CacheName    string   // Versioned cache name; other names are purged on Activate
	Origin       string   // Base URL for relative precache entries
	NetworkFirst []string // host/path globs served network-first
}

// Worker is an http.RoundTripper that intercepts every outgoing request and
// answers it from the cache or the network according to its policy.
type Worker struct {
	store   Store
	next    http.RoundTripper
	opts    Options
	origin  *url.URL
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewWorker wraps next (http.DefaultTransport when nil).
func NewWorker(store Store, next http.RoundTripper, opts Options, m *metrics.Metrics, log *slog.Logger) (*Worker, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	if opts.CacheName == "" {
		return nil, errors.New("offline: cache name is required")
	}
	for _, p := range opts.NetworkFirst {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("offline: invalid route pattern %q", p)
		}
	}
	w := &Worker{store: store, next: next, opts: opts, log: log, metrics: m}
	if opts.Origin != "" {
		u, err := url.Parse(opts.Origin)
		if err != nil {
			return nil, fmt.Errorf("offline: parse origin: %w", err)
		}
		w.origin = u
	}
	return w, nil
}

// Install precaches the manifest. Either every URL is stored or none is.
func (w *Worker) Install(ctx context.Context, manifest []string) error {
	entries := make([]Entry, 0, len(manifest))
	for _, raw := range manifest {
		u, err := w.resolve(raw)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("precache %s: %w", u, err)
		}
		resp, err := w.next.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("precache %s: %w", u, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("precache %s: read body: %w", u, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("precache %s: status %d", u, resp.StatusCode)
		}
		entries = append(entries, Entry{URL: u, Status: resp.StatusCode, Header: resp.Header, Body: body})
	}
	for _, e := range entries {
		if err := w.store.Put(ctx, w.opts.CacheName, e); err != nil {
			return err
		}
	}
	w.log.Info("precache installed", "cache", w.opts.CacheName, "entries", len(entries))
	return nil
}

// Activate drops caches left behind by other cache versions.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.store.Caches(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == w.opts.CacheName {
			continue
		}
		if err := w.store.DeleteCache(ctx, n); err != nil {
			return err
		}
		w.log.Info("purged stale cache", "cache", n)
	}
	return nil
}

// PolicyFor routes a URL by matching host+path against the network-first globs.
func (w *Worker) PolicyFor(u *url.URL) Policy {
	name := u.Host + u.EscapedPath()
	for _, p := range w.opts.NetworkFirst {
		if ok, _ := doublestar.Match(p, name); ok {
			return NetworkFirst
		}
	}
	return CacheFirst
}

func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return w.next.RoundTrip(req)
	}
	if w.PolicyFor(req.URL) == NetworkFirst {
		return w.networkFirst(req)
	}
	return w.cacheFirst(req)
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := w.next.RoundTrip(req)
	if err == nil {
		w.metrics.Cache(NetworkFirst.String(), "network")
		return w.storeCopy(req, resp)
	}

	entry, cerr := w.store.Match(req.Context(), w.opts.CacheName, cacheKey(req.URL))
	if cerr != nil {
		w.metrics.Cache(NetworkFirst.String(), "miss")
		return nil, err
	}
	w.log.Warn("network failed, serving cached copy", "url", req.URL.String(), "error", err)
	w.metrics.Cache(NetworkFirst.String(), "fallback")
	return entry.Response(req), nil
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	entry, err := w.store.Match(req.Context(), w.opts.CacheName, cacheKey(req.URL))
	if err == nil {
		w.metrics.Cache(CacheFirst.String(), "hit")
		return entry.Response(req), nil
	}
	if !errors.Is(err, ErrNotCached) {
		w.log.Warn("cache lookup failed", "url", req.URL.String(), "error", err)
	}

	resp, nerr := w.next.RoundTrip(req)
	if nerr != nil {
		w.metrics.Cache(CacheFirst.String(), "miss")
		return nil, nerr
	}
	w.metrics.Cache(CacheFirst.String(), "network")
	return w.storeCopy(req, resp)
}

// storeCopy caches successful responses and hands back an unread body.
func (w *Worker) storeCopy(req *http.Request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := Entry{URL: cacheKey(req.URL), Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}
	if err := w.store.Put(req.Context(), w.opts.CacheName, entry); err != nil {
		w.log.Warn("cache put failed", "url", entry.URL, "error", err)
	}
	return resp, nil
}

func (w *Worker) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("precache %q: %w", raw, err)
	}
	if u.IsAbs() {
		return cacheKey(u), nil
	}
	if w.origin == nil {
		return "", fmt.Errorf("precache %q: relative URL without origin", raw)
	}
	return cacheKey(w.origin.ResolveReference(u)), nil
}

func cacheKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
