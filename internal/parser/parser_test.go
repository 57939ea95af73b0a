package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n---\n# Heading\nBody text.\n")
	r, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, "Hello", r.Title)
	assert.Equal(t, "# Heading\nBody text.\n", r.Body)
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	require.NoError(t, err)
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, "Just a heading", r.Title)
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	require.NoError(t, err)
	assert.Nil(t, r.Frontmatter, "invalid YAML yields no frontmatter")
	assert.Equal(t, string(input), r.Body, "body falls back to the whole input")
}

func TestTitle_FirstH1Only(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"h2 before h1", "## Sub\n\n# Main\n", "Main"},
		{"inline markup", "# The *quick* `fox`\n", "The quick fox"},
		{"setext", "Title Line\n==========\n\nbody\n", "Title Line"},
		{"heading in code fence", "```\n# not a title\n```\n", ""},
		{"no heading", "plain text\n", ""},
		{"blank frontmatter title", "---\ntitle: \"  \"\n---\n# Fallback\n", "Fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Title([]byte(tc.in)))
		})
	}
}
