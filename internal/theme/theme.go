package theme

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docview/internal/dom"
)

// Name is a theme preference value.
type Name string

const (
	Light Name = "light"
	Dark  Name = "dark"
)

// PreferenceKey is the storage key holding the persisted theme.
const PreferenceKey = "theme"

// ThemeAttr is the document-level attribute consumed by stylesheets.
const ThemeAttr = "data-theme"

var ErrUnknownTheme = errors.New("unknown theme")

// Parse validates a theme name.
func Parse(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Light, Dark:
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
}

// Toggle returns the opposite theme.
func (n Name) Toggle() Name {
	if n == Dark {
		return Light
	}
	return Dark
}

// Stylesheets are the two external stylesheet URLs matched to a theme.
type Stylesheets struct {
	Content   string // Markdown body styles
	Highlight string // Code highlight styles
}

// Assets maps each theme to its stylesheets.
type Assets map[Name]Stylesheets

// Store persists preferences.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Manager owns the persisted theme preference and applies it to a page.
type Manager struct {
	page    *dom.Page
	store   Store
	assets  Assets
	current Name
	subs    []func(Name)
	log     *slog.Logger
}

// NewManager restores the stored preference (or fallback) and applies it
// to the page without notifying subscribers.
func NewManager(page *dom.Page, store Store, assets Assets, fallback Name, log *slog.Logger) (*Manager, error) {
	m := &Manager{page: page, store: store, assets: assets, log: log}

	initial := fallback
	stored, ok, err := store.Get(PreferenceKey)
	if err != nil {
		log.Warn("read theme preference", "error", err)
	} else if ok {
		if n, err := Parse(stored); err == nil {
			initial = n
		} else {
			log.Warn("ignoring stored theme", "value", stored)
		}
	}
	if err := m.ApplyTheme(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active theme.
func (m *Manager) Current() Name {
	return m.current
}

// Subscribe registers fn to be called after every theme change.
func (m *Manager) Subscribe(fn func(Name)) {
	m.subs = append(m.subs, fn)
}

// ApplyTheme sets the page attribute, swaps the theme stylesheets and
// persists the preference.
func (m *Manager) ApplyTheme(name Name) error {
	if _, err := Parse(string(name)); err != nil {
		return err
	}
	m.current = name
	dom.SetAttr(m.page.Root, ThemeAttr, string(name))

	sheets := m.assets[name]
	if link := m.page.ByID(dom.ContentThemeID); link != nil {
		dom.SetAttr(link, "href", sheets.Content)
	}
	if link := m.page.ByID(dom.HighlightThemeID); link != nil {
		dom.SetAttr(link, "href", sheets.Highlight)
	}

	if err := m.store.Set(PreferenceKey, string(name)); err != nil {
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}

// SetTheme applies name and, when it differs from the active theme,
// notifies subscribers.
func (m *Manager) SetTheme(name Name) error {
	if _, err := Parse(string(name)); err != nil {
		return err
	}
	changed := name != m.current
	// A persistence failure still leaves the page switched, so subscribers
	// must see the change.
	err := m.ApplyTheme(name)
	if changed {
		m.log.Info("theme changed", "theme", name)
		for _, fn := range m.subs {
			fn(name)
		}
	}
	return err
}

// ToggleTheme flips between light and dark and notifies subscribers.
func (m *Manager) ToggleTheme() (Name, error) {
	next := m.current.Toggle()
	return next, m.SetTheme(next)
}
