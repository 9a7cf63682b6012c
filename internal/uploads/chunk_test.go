package uploads

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_SizeAndOverlap(t *testing.T) {
	page := strings.Repeat("é", 2500)
	chunks, pages := Chunk([]string{page}, 1000, 100)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
		assert.Equal(t, 1, pages[i])
	}
	// starts at 0, 900, 1800
	assert.Equal(t, 700, utf8.RuneCountInString(chunks[2]))
}

func TestChunk_OverlapIsShared(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	chunks, _ := Chunk([]string{sb.String()}, 100, 20)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		assert.Equal(t, string(prev[len(prev)-20:]), string([]rune(chunks[i])[:20]))
	}
}

func TestChunk_Pages(t *testing.T) {
	chunks, pages := Chunk([]string{"page un", "   ", "page trois\n\n suite"}, 1000, 100)
	assert.Equal(t, []string{"page un", "page trois suite"}, chunks)
	assert.Equal(t, []int{1, 3}, pages)
}

func TestPageForChunk(t *testing.T) {
	// 10 chunks over 3 pages: 4 per page
	got := make([]int, 10)
	for i := range got {
		got[i] = PageForChunk(i, 10, 3)
	}
	assert.Equal(t, []int{1, 1, 1, 1, 2, 2, 2, 2, 3, 3}, got)
	assert.Equal(t, 1, PageForChunk(5, 10, 0))
	for i := 0; i < 7; i++ {
		p := PageForChunk(i, 7, 5)
		assert.GreaterOrEqual(t, p, 1)
		assert.LessOrEqual(t, p, 5)
	}
}
