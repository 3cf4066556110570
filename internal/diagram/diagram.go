package diagram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	xhtml "golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
	"github.com/dgallion1/docview/internal/render"
	"github.com/dgallion1/docview/internal/theme"
)

// Attributes maintained on diagram containers.
const (
	sourceAttr    = "data-source"
	processedAttr = "data-processed"
	themeAttr     = "data-diagram-theme"
	errorClass    = "diagram-error"
)

var containers = cascadia.MustCompile("div." + render.DiagramClass)

// Palette is the theme-dependent configuration handed to the engine.
type Palette struct {
	Theme     string            `json:"theme"`
	Variables map[string]string `json:"themeVariables,omitempty"`
}

// PaletteFor maps a page theme to a diagram palette.
func PaletteFor(name theme.Name) Palette {
	if name == theme.Light {
		return Palette{
			Theme: "default",
			Variables: map[string]string{
				"background":   "#ffffff",
				"primaryColor": "#f6f8fa",
				"lineColor":    "#57606a",
			},
		}
	}
	return Palette{
		Theme: "dark",
		Variables: map[string]string{
			"background":   "#0d1117",
			"primaryColor": "#161b22",
			"lineColor":    "#8b949e",
		},
	}
}

// Engine turns diagram source into SVG markup.
type Engine interface {
	Initialize(ctx context.Context, p Palette) error
	Render(ctx context.Context, id, source string) (string, error)
}

// Result summarizes one RenderDiagrams pass.
type Result struct {
	Rendered int
	Failed   int
}

// Adapter converts diagram containers in a DOM tree into rendered diagrams.
type Adapter struct {
	engine Engine
	log    *slog.Logger
}

func NewAdapter(engine Engine, log *slog.Logger) *Adapter {
	return &Adapter{engine: engine, log: log}
}

// RenderDiagrams initializes the engine for the theme and (re)renders every
// diagram container under root. Failures are confined to their block.
func (a *Adapter) RenderDiagrams(ctx context.Context, root *xhtml.Node, name theme.Name) Result {
	var res Result
	nodes := cascadia.QueryAll(root, containers)
	if len(nodes) == 0 {
		return res
	}

	if err := a.engine.Initialize(ctx, PaletteFor(name)); err != nil {
		a.log.Error("diagram engine init failed", "theme", name, "error", err)
		for _, n := range nodes {
			showError(n, sourceOf(n))
		}
		res.Failed = len(nodes)
		return res
	}

	for i, n := range nodes {
		src := sourceOf(n)
		id := fmt.Sprintf("mermaid-%d", i)
		if err := a.renderOne(ctx, n, id, src); err != nil {
			a.log.Warn("diagram render failed", "id", id, "error", err)
			showError(n, src)
			res.Failed++
			continue
		}
		dom.SetAttr(n, themeAttr, string(name))
		res.Rendered++
	}
	return res
}

// OnThemeChanged returns a theme subscriber re-rendering the diagrams under
// the root returned by rootFn.
func (a *Adapter) OnThemeChanged(ctx context.Context, rootFn func() *xhtml.Node) func(theme.Name) {
	return func(name theme.Name) {
		res := a.RenderDiagrams(ctx, rootFn(), name)
		a.log.Debug("diagrams re-rendered", "theme", name, "rendered", res.Rendered, "failed", res.Failed)
	}
}

func (a *Adapter) renderOne(ctx context.Context, n *xhtml.Node, id, src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("diagram engine panic: %v", r)
		}
	}()
	svg, err := a.engine.Render(ctx, id, src)
	if err != nil {
		return err
	}
	if err := dom.SetInnerHTML(n, svg); err != nil {
		return err
	}
	dom.SetAttr(n, "id", id)
	dom.SetAttr(n, processedAttr, "true")
	dom.RemoveClass(n, errorClass)
	return nil
}

// sourceOf returns the original diagram text, capturing it on first visit.
func sourceOf(n *xhtml.Node) string {
	if v, ok := dom.Attr(n, sourceAttr); ok {
		return v
	}
	src := dom.Text(n)
	dom.SetAttr(n, sourceAttr, src)
	return src
}

func showError(n *xhtml.Node, src string) {
	dom.SetText(n, src)
	dom.AddClass(n, errorClass)
	dom.RemoveAttr(n, processedAttr)
}

// SourceEngine shows the diagram source as preformatted text. It is used
// when no rendering backend is configured.
type SourceEngine struct {
	palette Palette
}

func (e *SourceEngine) Initialize(_ context.Context, p Palette) error {
	e.palette = p
	return nil
}

func (e *SourceEngine) Render(_ context.Context, id, source string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="diagram-source" data-palette="%s">`, html.EscapeString(e.palette.Theme))
	b.WriteString(html.EscapeString(source))
	b.WriteString("</div>")
	return b.String(), nil
}
