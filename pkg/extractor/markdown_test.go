package extractor_test

import (
	"context"
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownDuplicateParagraphsShareHashDistinctLines(t *testing.T) {
	content := "Repeat me\n\nRepeat me\n\nRepeat me\n"

	ext := extractor.NewMarkdownExtractor()
	chunks, _, err := ext.Extract(context.Background(), "docs/a.md", "main", []byte(content), 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	lines := []int{chunks[0].StartLine, chunks[1].StartLine, chunks[2].StartLine}
	assert.ElementsMatch(t, []int{1, 3, 5}, lines)

	for _, c := range chunks {
		assert.Equal(t, "Repeat me", c.Content)
		assert.Equal(t, chunks[0].ChunkHash, c.ChunkHash)
	}
}

func TestMarkdownSkipsBlankOnlyParagraphs(t *testing.T) {
	content := "# Title\n\n---\n\nReal text here.\n"

	ext := extractor.NewMarkdownExtractor()
	chunks, _, err := ext.Extract(context.Background(), "a.md", "main", []byte(content), 0)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.NotEmpty(t, c.Content)
	}
}

func TestMarkdownOrderingAscendingStartLine(t *testing.T) {
	content := "first\n\nsecond\n\nthird\n"

	ext := extractor.NewMarkdownExtractor()
	chunks, _, err := ext.Extract(context.Background(), "a.md", "main", []byte(content), 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i-1].StartLine, chunks[i].StartLine)
	}
}
