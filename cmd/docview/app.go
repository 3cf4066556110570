package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgallion1/docview/internal/assets"
	"github.com/dgallion1/docview/internal/clipboard"
	"github.com/dgallion1/docview/internal/config"
	"github.com/dgallion1/docview/internal/diagram"
	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/loader"
	"github.com/dgallion1/docview/internal/logging"
	"github.com/dgallion1/docview/internal/metrics"
	"github.com/dgallion1/docview/internal/offline"
	"github.com/dgallion1/docview/internal/prefs"
	"github.com/dgallion1/docview/internal/render"
	"github.com/dgallion1/docview/internal/search"
	"github.com/dgallion1/docview/internal/theme"
	"github.com/dgallion1/docview/internal/viewer"
)

// app holds everything a command needs, wired from the config.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	prefs   *prefs.FileStore
	worker  *offline.Worker
	session *viewer.Session
	closers []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the session and its collaborators. logOut receives logs
// unless a log file is configured.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, viewport search.Viewport) (*app, error) {
	log, logCloser := logging.New(cfg.Log, logOut)
	a := &app{cfg: cfg, log: log, reg: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() { logCloser.Close() })

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	m := metrics.New(a.reg)

	store, err := prefs.OpenFile(cfg.PrefsPath())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.prefs = store

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Offline.Enabled {
		cache, err := offline.OpenSQLite(cfg.CachePath())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { cache.Close() })

		a.worker, err = offline.NewWorker(cache, http.DefaultTransport, offline.Options{
			CacheName:    cfg.Offline.CacheName,
			Origin:       cfg.Origin,
			NetworkFirst: cfg.Offline.NetworkFirst,
		}, m, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.worker.Activate(ctx); err != nil {
			log.Warn("purge stale caches", "error", err)
		}
		transport = a.worker
	}

	// Every asset the process fetches itself goes through the same client,
	// so the offline cache serves stylesheets and mermaid.js too.
	httpClient := &http.Client{Timeout: cfg.FetchTimeout, Transport: transport}

	var engine diagram.Engine = &diagram.SourceEngine{}
	if cfg.Diagram.Engine == "chrome" {
		chrome := diagram.NewChromeEngine(diagram.ChromeOptions{
			ScriptURL: cfg.Diagram.MermaidURL,
			ExecPath:  cfg.Diagram.ChromePath,
			Timeout:   cfg.Diagram.Timeout,
			Client:    httpClient,
		}, log)
		a.closers = append(a.closers, chrome.Close)
		engine = chrome
	}

	defaultTheme, err := theme.Parse(cfg.DefaultTheme)
	if err != nil {
		a.Close()
		return nil, err
	}

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	styles := &export.Stylesheets{
		Local:    assets.Lookup,
		Client:   httpClient,
		Base:     origin,
		MaxBytes: cfg.MaxBytes,
		Log:      log,
	}

	a.session, err = viewer.New(ctx, viewer.Deps{
		Loader:      loader.NewClient(cfg.DocumentURL, httpClient, cfg.MaxBytes),
		Renderer:    render.New(render.Options{Sanitize: cfg.Render.Sanitize}),
		Highlighter: highlight.New(log),
		Diagrams:    diagram.NewAdapter(engine, log),
		Clipboard:   clipboard.System{},
		Prefs:       store,
		Viewport:    viewport,
		Styles:      styles,
		Metrics:     m,
		Log:         log,
	}, viewer.Options{
		Title: documentTitle(cfg.DocumentURL),
		Themes: theme.Assets{
			theme.Light: {Content: cfg.Themes.Light.Content, Highlight: cfg.Themes.Light.Highlight},
			theme.Dark:  {Content: cfg.Themes.Dark.Content, Highlight: cfg.Themes.Dark.Highlight},
		},
		DefaultTheme: defaultTheme,
		Debounce:     cfg.SearchDebounce,
		CopyFeedback: cfg.CopyFeedback,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.session.Close)
	return a, nil
}

// precache installs the offline manifest in the background.
func (a *app) precache(ctx context.Context) {
	if a.worker == nil || len(a.cfg.Offline.Precache) == 0 {
		return
	}
	go func() {
		if err := a.worker.Install(ctx, a.cfg.Offline.Precache); err != nil {
			a.log.Warn("precache failed", "error", err)
		}
	}()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func documentTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "docview"
	}
	return path.Base(u.Path)
}
