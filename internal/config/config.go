package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: DOCVIEW_DIAGRAM__ENGINE sets diagram.engine.
const EnvPrefix = "DOCVIEW_"

// DefaultDocumentURL is the document shown when none is configured.
const DefaultDocumentURL = "https://raw.githubusercontent.com/g-h-0-S-t/JavaScript-Interview/main/README.md"

// Remote assets used by default. They are fetched through the offline cache.
const (
	lightMarkdownCSS = "https://cdn.jsdelivr.net/npm/github-markdown-css@5/github-markdown-light.min.css"
	darkMarkdownCSS  = "https://cdn.jsdelivr.net/npm/github-markdown-css@5/github-markdown-dark.min.css"
	mermaidScript    = "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"
)

type Config struct {
	DocumentURL string `yaml:"document_url" koanf:"document_url"`
	Origin      string `yaml:"origin" koanf:"origin"` // Where the page is served from
	Port        string `yaml:"port" koanf:"port"`
	DataDir     string `yaml:"data_dir" koanf:"data_dir"`

	// Loading
	FetchTimeout time.Duration `yaml:"fetch_timeout" koanf:"fetch_timeout"`
	MaxBytes     int64         `yaml:"max_bytes" koanf:"max_bytes"`

	// Interaction
	SearchDebounce time.Duration `yaml:"search_debounce" koanf:"search_debounce"`
	CopyFeedback   time.Duration `yaml:"copy_feedback" koanf:"copy_feedback"`
	DefaultTheme   string        `yaml:"default_theme" koanf:"default_theme"`

	Render  RenderConfig  `yaml:"render" koanf:"render"`
	Themes  ThemesConfig  `yaml:"themes" koanf:"themes"`
	Diagram DiagramConfig `yaml:"diagram" koanf:"diagram"`
	Offline OfflineConfig `yaml:"offline" koanf:"offline"`
	Log     LogConfig     `yaml:"log" koanf:"log"`
}

type RenderConfig struct {
	// Sanitize drops raw HTML from the document. Off means the source is
	// trusted.
	Sanitize bool `yaml:"sanitize" koanf:"sanitize"`
}

// ThemeAssets are the stylesheet URLs for one theme.
type ThemeAssets struct {
	Content   string `yaml:"content" koanf:"content"`
	Highlight string `yaml:"highlight" koanf:"highlight"`
}

type ThemesConfig struct {
	Light ThemeAssets `yaml:"light" koanf:"light"`
	Dark  ThemeAssets `yaml:"dark" koanf:"dark"`
}

type DiagramConfig struct {
	Engine     string        `yaml:"engine" koanf:"engine"` // chrome or none
	MermaidURL string        `yaml:"mermaid_url" koanf:"mermaid_url"`
	ChromePath string        `yaml:"chrome_path" koanf:"chrome_path"`
	Timeout    time.Duration `yaml:"timeout" koanf:"timeout"`
}

type OfflineConfig struct {
	Enabled      bool     `yaml:"enabled" koanf:"enabled"`
	CacheName    string   `yaml:"cache_name" koanf:"cache_name"`
	Precache     []string `yaml:"precache" koanf:"precache"`
	NetworkFirst []string `yaml:"network_first" koanf:"network_first"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"` // json or text
	File   string `yaml:"file" koanf:"file"`     // Rotated file instead of stderr
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := ".docview"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "docview")
	}
	return &Config{
		DocumentURL:    DefaultDocumentURL,
		Origin:         "http://localhost:8090",
		Port:           "8090",
		DataDir:        dataDir,
		FetchTimeout:   30 * time.Second,
		MaxBytes:       16 << 20,
		SearchDebounce: 160 * time.Millisecond,
		CopyFeedback:   1200 * time.Millisecond,
		DefaultTheme:   "dark",
		Themes: ThemesConfig{
			Light: ThemeAssets{
				Content:   lightMarkdownCSS,
				Highlight: "/assets/highlight-light.css",
			},
			Dark: ThemeAssets{
				Content:   darkMarkdownCSS,
				Highlight: "/assets/highlight-dark.css",
			},
		},
		Diagram: DiagramConfig{
			Engine:     "chrome",
			MermaidURL: mermaidScript,
			Timeout:    20 * time.Second,
		},
		Offline: OfflineConfig{
			Enabled:   true,
			CacheName: "docview-v1",
			Precache:  []string{lightMarkdownCSS, darkMarkdownCSS, mermaidScript},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path (if it exists), overlays DOCVIEW_*
// environment variables and fills in defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp replaces non-positive limits with their defaults.
func (c *Config) clamp() {
	def := Default()
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = def.MaxBytes
	}
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = def.SearchDebounce
	}
	if c.CopyFeedback <= 0 {
		c.CopyFeedback = def.CopyFeedback
	}
	if c.Diagram.Timeout <= 0 {
		c.Diagram.Timeout = def.Diagram.Timeout
	}
	if c.Offline.CacheName == "" {
		c.Offline.CacheName = def.Offline.CacheName
	}
	if len(c.Offline.NetworkFirst) == 0 {
		if u, err := url.Parse(c.DocumentURL); err == nil && u.Host != "" {
			c.Offline.NetworkFirst = []string{u.Host + "/**"}
		}
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.DocumentURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("document_url must be an absolute http(s) URL, got %q", c.DocumentURL)
	}
	if o, err := url.Parse(c.Origin); err != nil || o.Host == "" {
		return fmt.Errorf("origin must be an absolute URL, got %q", c.Origin)
	}
	switch c.DefaultTheme {
	case "light", "dark":
	default:
		return fmt.Errorf("invalid default_theme %q: must be light or dark", c.DefaultTheme)
	}
	switch c.Diagram.Engine {
	case "chrome", "none":
	default:
		return fmt.Errorf("invalid diagram.engine %q: must be chrome or none", c.Diagram.Engine)
	}
	if c.Diagram.Engine == "chrome" && c.Diagram.MermaidURL == "" {
		return fmt.Errorf("diagram.mermaid_url is required for the chrome engine")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or text", c.Log.Format)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// PrefsPath is the theme preference file.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.DataDir, "prefs.yaml")
}

// CachePath is the background cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}
