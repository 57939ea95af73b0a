package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("default size", func(t *testing.T) {
		assert.Equal(t, DefaultSize, New().Size())
	})

	t.Run("custom size", func(t *testing.T) {
		assert.Equal(t, 500, New(WithSize(500)).Size())
	})

	t.Run("non-positive size ignored", func(t *testing.T) {
		assert.Equal(t, DefaultSize, New(WithSize(0)).Size())
		assert.Equal(t, DefaultSize, New(WithSize(-3)).Size())
	})
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", 10))
}

func TestSplit_ThreeThousandChars(t *testing.T) {
	content := strings.Repeat("a", 3000)
	parts := Split(content, 1200)

	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 1200)
	assert.Len(t, parts[1], 1200)
	assert.Len(t, parts[2], 600)
}

func TestSplit_ExactMultiple(t *testing.T) {
	parts := Split(strings.Repeat("x", 20), 10)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.Len(t, p, 10)
	}
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	content := strings.Repeat("ж", 5) + strings.Repeat("🙂", 5)
	parts := Split(content, 4)

	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p), "segment %q is not valid UTF-8", p)
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 4)
	}
	assert.Equal(t, 2, utf8.RuneCountInString(parts[2]))
}

func TestSplit_Reconstruction(t *testing.T) {
	content := "Lorem ipsum dolor sit amet, ünïcödé text\nwith lines\tand tabs. " +
		strings.Repeat("0123456789", 37)

	for size := 1; size <= 64; size++ {
		parts := Split(content, size)
		assert.Equal(t, content, strings.Join(parts, ""), "size %d", size)
		for i, p := range parts {
			n := utf8.RuneCountInString(p)
			assert.LessOrEqual(t, n, size, "size %d part %d", size, i)
			assert.NotZero(t, n, "size %d part %d is empty", size, i)
		}
	}
}

func TestSplit_DefaultOnNonPositive(t *testing.T) {
	parts := Split(strings.Repeat("b", DefaultSize+1), 0)
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 1)
}

func TestChunker_Split(t *testing.T) {
	c := New(WithSize(3))
	assert.Equal(t, []string{"abc", "def", "g"}, c.Split("abcdefg"))
}
