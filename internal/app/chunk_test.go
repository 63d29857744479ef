package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInput(t *testing.T) {
	chunks := chunkText("short text", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10)
	chunks := chunkText(text, 10, 4)

	require.True(t, len(chunks) >= 2)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	// Each next chunk starts size-overlap runes after the previous one.
	assert.True(t, strings.HasPrefix(chunks[1], "aaaa"))
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, chunkText("", 1000, 200))
}

func TestChunkTextUnicode(t *testing.T) {
	text := strings.Repeat("日", 15)
	chunks := chunkText(text, 10, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("日", 10), chunks[0])
	assert.Equal(t, strings.Repeat("日", 5), chunks[1])
}

func TestChunkTextDropsBlankChunks(t *testing.T) {
	// A run of whitespace spanning a whole chunk would otherwise reach the
	// embedder as a blank text and fail the document.
	text := strings.Repeat("a", 10) + strings.Repeat(" ", 10) + strings.Repeat("b", 10)
	chunks := chunkText(text, 10, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	assert.Equal(t, strings.Repeat("b", 10), chunks[1])
}

func TestChunkTextWhitespaceOnly(t *testing.T) {
	assert.Empty(t, chunkText("   \n\t  ", 10, 0))
}

func TestChunkTextInvalidSizeFallsBack(t *testing.T) {
	chunks := chunkText("hello", 0, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestChunkTextOverlapLargerThanSize(t *testing.T) {
	// Would never advance otherwise.
	chunks := chunkText(strings.Repeat("x", 30), 10, 15)
	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
}
