package theme

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docview/internal/dom"
)

type mapStore struct {
	values map[string]string
	setErr error
}

func (s *mapStore) Get(key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapStore) Set(key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

var testAssets = Assets{
	Light: {Content: "content-light.css", Highlight: "hl-light.css"},
	Dark:  {Content: "content-dark.css", Highlight: "hl-dark.css"},
}

func newManager(t *testing.T, store *mapStore) (*Manager, *dom.Page) {
	t.Helper()
	page, err := dom.NewPage("t")
	require.NoError(t, err)
	m, err := NewManager(page, store, testAssets, Dark, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m, page
}

func href(t *testing.T, page *dom.Page, id string) string {
	t.Helper()
	link := page.ByID(id)
	require.NotNil(t, link)
	v, _ := dom.Attr(link, "href")
	return v
}

func TestParse(t *testing.T) {
	n, err := Parse(" Light ")
	require.NoError(t, err)
	assert.Equal(t, Light, n)

	_, err = Parse("sepia")
	assert.ErrorIs(t, err, ErrUnknownTheme)
}

func TestNewManager_UsesFallbackWhenNothingStored(t *testing.T) {
	store := &mapStore{values: map[string]string{}}
	m, page := newManager(t, store)

	assert.Equal(t, Dark, m.Current())
	attr, _ := dom.Attr(page.Root, ThemeAttr)
	assert.Equal(t, "dark", attr)
	assert.Equal(t, "content-dark.css", href(t, page, dom.ContentThemeID))
	assert.Equal(t, "hl-dark.css", href(t, page, dom.HighlightThemeID))
	assert.Equal(t, "dark", store.values[PreferenceKey])
}

func TestNewManager_RestoresStoredPreference(t *testing.T) {
	store := &mapStore{values: map[string]string{PreferenceKey: "light"}}
	m, page := newManager(t, store)

	assert.Equal(t, Light, m.Current())
	assert.Equal(t, "hl-light.css", href(t, page, dom.HighlightThemeID))
}

func TestNewManager_IgnoresGarbagePreference(t *testing.T) {
	store := &mapStore{values: map[string]string{PreferenceKey: "neon"}}
	m, _ := newManager(t, store)
	assert.Equal(t, Dark, m.Current())
}

func TestToggleTheme_TwiceRestoresPreference(t *testing.T) {
	store := &mapStore{values: map[string]string{}}
	m, page := newManager(t, store)

	var notified []Name
	m.Subscribe(func(n Name) { notified = append(notified, n) })

	next, err := m.ToggleTheme()
	require.NoError(t, err)
	assert.Equal(t, Light, next)
	assert.Equal(t, "light", store.values[PreferenceKey])
	assert.Equal(t, "content-light.css", href(t, page, dom.ContentThemeID))

	next, err = m.ToggleTheme()
	require.NoError(t, err)
	assert.Equal(t, Dark, next)
	assert.Equal(t, "dark", store.values[PreferenceKey])

	assert.Equal(t, []Name{Light, Dark}, notified)
}

func TestApplyTheme_DoesNotNotify(t *testing.T) {
	m, _ := newManager(t, &mapStore{values: map[string]string{}})
	called := false
	m.Subscribe(func(Name) { called = true })

	require.NoError(t, m.ApplyTheme(Light))
	assert.False(t, called)
	assert.ErrorIs(t, m.ApplyTheme("blue"), ErrUnknownTheme)
	assert.Equal(t, Light, m.Current())
}

func TestToggleTheme_PersistFailureStillNotifies(t *testing.T) {
	store := &mapStore{values: map[string]string{}}
	m, _ := newManager(t, store)
	store.setErr = errors.New("disk full")

	calls := 0
	m.Subscribe(func(Name) { calls++ })

	next, err := m.ToggleTheme()
	assert.Error(t, err)
	assert.Equal(t, Light, next)
	assert.Equal(t, Light, m.Current())
	assert.Equal(t, 1, calls)
}

func TestSetTheme_NotifiesOnlyOnChange(t *testing.T) {
	store := &mapStore{values: map[string]string{}}
	m, page := newManager(t, store)
	var notified []Name
	m.Subscribe(func(n Name) { notified = append(notified, n) })

	require.NoError(t, m.SetTheme(Dark))
	assert.Empty(t, notified, "already dark")

	require.NoError(t, m.SetTheme(Light))
	assert.Equal(t, []Name{Light}, notified)
	assert.Equal(t, "hl-light.css", href(t, page, dom.HighlightThemeID))
	assert.Equal(t, "light", store.values[PreferenceKey])

	assert.ErrorIs(t, m.SetTheme("sepia"), ErrUnknownTheme)
	assert.Equal(t, Light, m.Current())
	assert.Len(t, notified, 1)
}
