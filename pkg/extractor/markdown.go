package extractor

import (
	"context"
	"strings"
	"unicode"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// markdownExtractor splits a Markdown file on blank-line paragraph
// boundaries. Line numbers track a running cursor through the file so
// that duplicate paragraph text is attributed to its actual nth
// occurrence rather than a naive substring search.
type markdownExtractor struct{}

// NewMarkdownExtractor returns the custom Markdown splitter.
func NewMarkdownExtractor() Extractor {
	return &markdownExtractor{}
}

func (e *markdownExtractor) Extract(_ context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	metrics := newMetrics("markdown")

	lines := strings.Split(string(content), "\n")

	var raw []chunk.Chunk

	var paragraphLines []string

	startLine := 0

	flush := func(endLine int) {
		if len(paragraphLines) == 0 {
			return
		}

		text := strings.Join(paragraphLines, "\n")
		if hasAlphanumeric(text) {
			c := chunk.New("", text, startLine, endLine)
			raw = append(raw, c)
		}

		paragraphLines = nil
	}

	for i, line := range lines {
		lineNo := i + 1

		if strings.TrimSpace(line) == "" {
			flush(lineNo - 1)
			continue
		}

		if len(paragraphLines) == 0 {
			startLine = lineNo
		}

		paragraphLines = append(paragraphLines, line)
	}

	flush(len(lines))

	metrics.FilesProcessed++

	finalized := finalizeChunks(raw, gitBranch, chunk.Hash(string(content)), chunk.KindDoc, maxChunkSizeBytes, &metrics)
	for i := range finalized {
		finalized[i].FilePath = filePath
		finalized[i].Language = "markdown"
		finalized[i].NodeKind = "paragraph"
	}

	return finalized, metrics, nil
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}

	return false
}
