package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docview/internal/theme"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		path   string
		found  bool
		inText string
	}{
		{ViewerPath, true, ".copy-btn"},
		{HighlightPath(theme.Light), true, ".chroma"},
		{HighlightPath(theme.Dark), true, ".chroma"},
		{"/assets/highlight-sepia.css", false, ""},
		{"/assets/other.css", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			data, ok := Lookup(tt.path)
			require.Equal(t, tt.found, ok)
			if tt.found {
				assert.Contains(t, string(data), tt.inText)
			}
		})
	}
}

func TestHighlightCSS_DiffersPerTheme(t *testing.T) {
	light, err := HighlightCSS(theme.Light)
	require.NoError(t, err)
	dark, err := HighlightCSS(theme.Dark)
	require.NoError(t, err)
	assert.NotEqual(t, string(light), string(dark))
}
