package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element ids the viewer relies on inside the page shell.
const (
	ContentID        = "content"
	SearchInputID    = "searchInput"
	ThemeToggleID    = "themeToggle"
	ContentThemeID   = "content-theme"
	HighlightThemeID = "highlight-theme"
)

const shell = `<!DOCTYPE html>
<html lang="en" data-theme="dark">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="manifest" href="/manifest.json">
<link id="content-theme" rel="stylesheet" href="">
<link id="highlight-theme" rel="stylesheet" href="">
<link rel="stylesheet" href="/assets/viewer.css">
</head>
<body>
<header class="toolbar">
<input id="searchInput" type="search" placeholder="Search..." autocomplete="off">
<button id="themeToggle" type="button">Toggle theme</button>
</header>
<main id="content" class="markdown-body"></main>
</body>
</html>`

// Page is the parsed page shell plus shortcuts to the nodes the viewer mutates.
type Page struct {
	Doc     *html.Node // Document node (parent of doctype and <html>)
	Root    *html.Node // <html> element
	Content *html.Node // <main id="content">
}

// NewPage parses the page shell with the given title.
func NewPage(title string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(fmt.Sprintf(shell, html.EscapeString(title))))
	if err != nil {
		return nil, fmt.Errorf("parse page shell: %w", err)
	}
	p := &Page{Doc: doc}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			p.Root = c
		}
	}
	p.Content = p.ByID(ContentID)
	if p.Root == nil || p.Content == nil {
		return nil, fmt.Errorf("page shell is missing <html> or #%s", ContentID)
	}
	return p, nil
}

// ByID returns the first element with the given id, or nil.
func (p *Page) ByID(id string) *html.Node {
	return findByID(p.Doc, id)
}

// HTML renders the whole page.
func (p *Page) HTML() string {
	var buf bytes.Buffer
	html.Render(&buf, p.Doc)
	return buf.String()
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if v, ok := Attr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// SetInnerHTML replaces the children of n with the parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// Render writes n and its subtree.
func Render(w io.Writer, n *html.Node) error {
	return html.Render(w, n)
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Text returns the concatenated text content of n, untrimmed.
func Text(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

// NewElement creates a detached element.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, s string) {
	RemoveChildren(n)
	n.AppendChild(NewText(s))
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v, _ := Attr(n, "class")
	for _, f := range strings.Fields(v) {
		if f == c {
			return true
		}
	}
	return false
}

// AddClass appends class c to n if absent.
func AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	v, _ := Attr(n, "class")
	if v == "" {
		SetAttr(n, "class", c)
		return
	}
	SetAttr(n, "class", v+" "+c)
}

// RemoveClass removes class c from n. The attribute is dropped when empty.
func RemoveClass(n *html.Node, c string) {
	v, ok := Attr(n, "class")
	if !ok {
		return
	}
	var kept []string
	for _, f := range strings.Fields(v) {
		if f != c {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// Closest returns the nearest ancestor of n (n included) matching match.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}
