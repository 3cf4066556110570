package search

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docview/internal/dom"
	"github.com/dgallion1/docview/internal/render"
)

// Mark classes.
const (
	HitClass    = "search-hit"
	ActiveClass = "active"
)

// NoResults is the block shown when a query matches nothing.
const NoResults = "_No results found._"

// IndexFold returns the byte range of the first case-insensitive occurrence
// of substr in s. The query is literal; nothing in it is special.
func IndexFold(s, substr string) (start, end int) {
	if substr == "" {
		return -1, -1
	}
	n := utf8.RuneCountInString(substr)
	for i := 0; i < len(s); {
		j := i
		for k := 0; k < n && j < len(s); k++ {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
		}
		if strings.EqualFold(s[i:j], substr) {
			return i, j
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	start, _ := IndexFold(s, substr)
	return start >= 0
}

// Filter keeps the blocks containing query. Order is preserved.
func Filter(blocks []string, query string) []string {
	var kept []string
	for _, b := range blocks {
		if ContainsFold(b, query) {
			kept = append(kept, b)
		}
	}
	return kept
}

// Mark wraps every occurrence of query in text outside code, diagram and
// control regions with <mark class="search-hit">, returning the marks in
// document order.
func Mark(root *html.Node, query string) *MatchSet {
	set := &MatchSet{}
	if query == "" {
		return set
	}
	for _, text := range searchableText(root) {
		set.marks = append(set.marks, wrapMatches(text, query)...)
	}
	return set
}

func searchableText(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped(n) {
			return
		}
		if n.Type == html.TextNode {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Pre, atom.Code, atom.Script, atom.Style, atom.Button, atom.Textarea, atom.Svg, atom.Mark:
		return true
	}
	return dom.HasClass(n, render.DiagramClass)
}

// wrapMatches splits a text node around each occurrence of query.
func wrapMatches(text *html.Node, query string) []*html.Node {
	s := text.Data
	start, end := IndexFold(s, query)
	if start < 0 {
		return nil
	}

	parent := text.Parent
	var marks []*html.Node
	for start >= 0 {
		if start > 0 {
			parent.InsertBefore(dom.NewText(s[:start]), text)
		}
		mark := dom.NewElement("mark", html.Attribute{Key: "class", Val: HitClass})
		mark.AppendChild(dom.NewText(s[start:end]))
		parent.InsertBefore(mark, text)
		marks = append(marks, mark)

		s = s[end:]
		start, end = IndexFold(s, query)
	}
	if s != "" {
		parent.InsertBefore(dom.NewText(s), text)
	}
	parent.RemoveChild(text)
	return marks
}

// Viewport scrolls the view so that n is visible, centered.
type Viewport interface {
	ScrollIntoView(n *html.Node)
}

// MatchSet is the ordered set of marks with exactly one active mark when
// non-empty.
type MatchSet struct {
	marks  []*html.Node
	active int
}

func (m *MatchSet) Len() int {
	if m == nil {
		return 0
	}
	return len(m.marks)
}

// Marks returns the marks in document order.
func (m *MatchSet) Marks() []*html.Node {
	if m == nil {
		return nil
	}
	return m.marks
}

// ActiveIndex returns the active position, or -1 when empty.
func (m *MatchSet) ActiveIndex() int {
	if m.Len() == 0 {
		return -1
	}
	return m.active
}

// Active returns the active mark, or nil when empty.
func (m *MatchSet) Active() *html.Node {
	if m.Len() == 0 {
		return nil
	}
	return m.marks[m.active]
}

// Activate makes mark i the only active one.
func (m *MatchSet) Activate(i int) *html.Node {
	if m.Len() == 0 {
		return nil
	}
	dom.RemoveClass(m.marks[m.active], ActiveClass)
	m.active = ((i % len(m.marks)) + len(m.marks)) % len(m.marks)
	dom.AddClass(m.marks[m.active], ActiveClass)
	return m.marks[m.active]
}

// Next advances circularly, wrapping from the last mark to the first.
func (m *MatchSet) Next() *html.Node {
	if m.Len() == 0 {
		return nil
	}
	return m.Activate(m.active + 1)
}
