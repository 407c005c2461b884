package extractor

import (
	"context"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// plainTextExtractor handles properties files, dotenv-style config, and
// other shallow line-oriented formats: one non-empty, non-comment line
// becomes one chunk.
type plainTextExtractor struct{}

// NewPlainTextExtractor returns the custom line-oriented splitter.
func NewPlainTextExtractor() Extractor {
	return &plainTextExtractor{}
}

func (e *plainTextExtractor) Extract(_ context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	metrics := newMetrics("plaintext")

	lines := strings.Split(string(content), "\n")

	var raw []chunk.Chunk

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		lineNo := i + 1
		raw = append(raw, chunk.New("", line, lineNo, lineNo))
	}

	metrics.FilesProcessed++

	finalized := finalizeChunks(raw, gitBranch, chunk.Hash(string(content)), chunk.KindDoc, maxChunkSizeBytes, &metrics)
	for i := range finalized {
		finalized[i].FilePath = filePath
		finalized[i].Language = "plaintext"
		finalized[i].NodeKind = "line"
	}

	return finalized, metrics, nil
}
