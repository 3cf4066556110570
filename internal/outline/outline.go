// Package outline builds the heading hierarchy of a Markdown document.
package outline

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Outline is the root of a document's heading tree.
type Outline struct {
	Title    string     `json:"title"` // Text of the first top-level heading, if any
	Sections []*Section `json:"sections"`
}

// Section is one heading and the headings nested under it.
type Section struct {
	Title    string     `json:"title"`
	Level    int        `json:"level"` // 1-6
	Line     int        `json:"line"`  // 1-based source line of the heading
	Sections []*Section `json:"sections,omitempty"`
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Build parses source and nests its headings by level. A heading that skips
// levels nests under the nearest shallower heading.
func Build(source string) *Outline {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	type stackEntry struct {
		section *Section
		level   int
	}
	root := &Section{}
	stack := []stackEntry{{section: root, level: 0}}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		s := &Section{
			Title: headingText(h, src),
			Level: h.Level,
			Line:  lineOf(h, src),
		}
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].section
		parent.Sections = append(parent.Sections, s)
		stack = append(stack, stackEntry{section: s, level: h.Level})
	}

	o := &Outline{Sections: root.Sections}
	if len(o.Sections) > 0 && o.Sections[0].Level == 1 {
		o.Title = o.Sections[0].Title
	}
	return o
}

// Walk visits every section depth-first with its nesting depth (0 for
// top-level sections).
func (o *Outline) Walk(fn func(s *Section, depth int)) {
	var walk func([]*Section, int)
	walk = func(list []*Section, depth int) {
		for _, s := range list {
			fn(s, depth)
			walk(s.Sections, depth+1)
		}
	}
	walk(o.Sections, 0)
}

// Len counts every section.
func (o *Outline) Len() int {
	n := 0
	o.Walk(func(*Section, int) { n++ })
	return n
}

// String renders the outline as an indented list.
func (o *Outline) String() string {
	var b strings.Builder
	o.Walk(func(s *Section, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(s.Title)
		b.WriteByte('\n')
	})
	return b.String()
}

// headingText is the visible heading text with inline markup dropped.
func headingText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var collect func(ast.Node)
	collect = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.CodeSpan:
				for g := t.FirstChild(); g != nil; g = g.NextSibling() {
					if s, ok := g.(*ast.Text); ok {
						buf.Write(s.Value(src))
					}
				}
			default:
				collect(c)
			}
		}
	}
	collect(n)
	return strings.TrimSpace(buf.String())
}

func lineOf(n ast.Node, src []byte) int {
	lines := n.Lines()
	if lines.Len() == 0 {
		return 0
	}
	return bytes.Count(src[:lines.At(0).Start], []byte("\n")) + 1
}
