package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitBlocks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"three paragraphs", "para one fox\n\npara two\n\npara three fox", []string{"para one fox", "para two", "para three fox"}},
		{"single newline stays in block", "line a\nline b\n\nnext", []string{"line a\nline b", "next"}},
		{"long runs of newlines", "a\n\n\n\n\nb", []string{"a", "b"}},
		{"crlf", "a\r\n\r\nb", []string{"a", "b"}},
		{"leading and trailing blanks", "\n\na\n\n", []string{"a"}},
		{"empty", "", nil},
		{"blank line inside code fence", "intro\n\n```js\nconst a = 1;\n\nconst fox = 2;\n```\n\nend",
			[]string{"intro", "```js\nconst a = 1;\n\nconst fox = 2;\n```", "end"}},
		{"blank line inside mermaid fence", "```mermaid\ngraph TD\n\nA-->B\n```\n\nafter",
			[]string{"```mermaid\ngraph TD\n\nA-->B\n```", "after"}},
		{"tilde fence with longer closer", "~~~\na\n\nb\n~~~~\n\nc", []string{"~~~\na\n\nb\n~~~~", "c"}},
		{"shorter marker does not close", "````\na\n```\n\nb\n````\n\nc", []string{"````\na\n```\n\nb\n````", "c"}},
		{"unclosed fence runs to the end", "text\n\n```\ncode\n\nmore", []string{"text", "```\ncode\n\nmore"}},
		{"inline backticks are not a fence", "``` not `a` fence\n\nnext", []string{"``` not `a` fence", "next"}},
		{"four-space indent is not a fence", "    ```\n\nnext", []string{"    ```", "next"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBlocks(tt.in))
		})
	}
}

func TestDocumentBlocks(t *testing.T) {
	d := Document{Source: "# Title\n\nbody"}
	assert.Equal(t, []string{"# Title", "body"}, d.Blocks())
	assert.Equal(t, "# Title\n\nbody", JoinBlocks(d.Blocks()))
}
