package document

import (
	"strings"
	"time"
)

// Document is the remote Markdown source as fetched. It is never mutated;
// a reload produces a new value.
type Document struct {
	URL       string    // Where the source was fetched from
	Source    string    // Raw Markdown text (may be empty)
	FetchedAt time.Time // Zero for documents not loaded over the network
}

// Blocks splits the document source into paragraph-separated blocks.
func (d Document) Blocks() []string {
	return SplitBlocks(d.Source)
}

// SplitBlocks splits text on empty lines. Fenced code blocks stay whole,
// blank lines included; a fence that is never closed runs to the end of the
// text. CRLF line endings are normalized first and blank blocks are dropped.
func SplitBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		blocks []string
		cur    []string
		fence  string
	)
	flush := func() {
		if b := strings.Join(cur, "\n"); strings.TrimSpace(b) != "" {
			blocks = append(blocks, b)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" && fence == "" {
			flush()
			continue
		}
		cur = append(cur, line)
		switch {
		case fence == "":
			fence = openingFence(line)
		case closesFence(line, fence):
			fence = ""
		}
	}
	flush()
	return blocks
}

// openingFence returns the fence marker (three or more backticks or tildes)
// that line opens, or "".
func openingFence(line string) string {
	rest, ok := trimIndent(line)
	if !ok || len(rest) < 3 || (rest[0] != '`' && rest[0] != '~') {
		return ""
	}
	n := markerLen(rest)
	if n < 3 {
		return ""
	}
	if rest[0] == '`' && strings.Contains(rest[n:], "`") {
		return ""
	}
	return rest[:n]
}

// closesFence reports whether line closes a block opened with fence.
func closesFence(line, fence string) bool {
	rest, ok := trimIndent(line)
	if !ok || rest == "" || rest[0] != fence[0] {
		return false
	}
	n := markerLen(rest)
	return n >= len(fence) && strings.TrimSpace(rest[n:]) == ""
}

// trimIndent strips up to three leading spaces. More indentation is an
// indented code line, not a fence.
func trimIndent(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	return trimmed, len(line)-len(trimmed) <= 3
}

func markerLen(s string) int {
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	return n
}

// JoinBlocks is the inverse of SplitBlocks for a subset of blocks.
func JoinBlocks(blocks []string) string {
	return strings.Join(blocks, "\n\n")
}
