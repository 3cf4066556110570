// Package assets serves the stylesheets the page shell links to.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/theme"
)

// Paths of the stylesheets generated in process.
const (
	ViewerPath          = "/assets/viewer.css"
	highlightPathPrefix = "/assets/highlight-"
)

//go:embed static
var static embed.FS

// HighlightStyles maps each theme to the chroma style of its code blocks.
var HighlightStyles = map[theme.Name]string{
	theme.Light: "github",
	theme.Dark:  "github-dark",
}

// HighlightPath is the stylesheet path for a theme's code colors.
func HighlightPath(name theme.Name) string {
	return highlightPathPrefix + string(name) + ".css"
}

// ViewerCSS returns the layout stylesheet.
func ViewerCSS() ([]byte, error) {
	data, err := static.ReadFile("static/viewer.css")
	if err != nil {
		return nil, fmt.Errorf("read viewer.css: %w", err)
	}
	return data, nil
}

// HighlightCSS generates the code color stylesheet for a theme.
func HighlightCSS(name theme.Name) ([]byte, error) {
	style, ok := HighlightStyles[name]
	if !ok {
		return nil, fmt.Errorf("no highlight style for theme %q", name)
	}
	var buf bytes.Buffer
	if err := highlight.WriteCSS(&buf, style); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Lookup returns the stylesheet served at path, if it is one of ours.
func Lookup(path string) ([]byte, bool) {
	if path == ViewerPath {
		data, err := ViewerCSS()
		return data, err == nil
	}
	rest, ok := strings.CutPrefix(path, highlightPathPrefix)
	if !ok {
		return nil, false
	}
	name, err := theme.Parse(strings.TrimSuffix(rest, ".css"))
	if err != nil {
		return nil, false
	}
	data, err := HighlightCSS(name)
	return data, err == nil
}
