package extractor

import (
	"context"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// yamlExtractor splits a YAML file on the "---" document separator, then
// splits each document into non-empty lines, each becoming its own chunk.
type yamlExtractor struct{}

// NewYAMLExtractor returns the custom YAML splitter.
func NewYAMLExtractor() Extractor {
	return &yamlExtractor{}
}

func (e *yamlExtractor) Extract(_ context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	metrics := newMetrics("yaml")

	lines := strings.Split(string(content), "\n")

	var raw []chunk.Chunk

	for i, line := range lines {
		lineNo := i + 1

		if strings.TrimSpace(line) == "---" {
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		c := chunk.New("", line, lineNo, lineNo)
		raw = append(raw, c)
	}

	metrics.FilesProcessed++

	finalized := finalizeChunks(raw, gitBranch, chunk.Hash(string(content)), chunk.KindDoc, maxChunkSizeBytes, &metrics)
	for i := range finalized {
		finalized[i].FilePath = filePath
		finalized[i].Language = "yaml"
		finalized[i].NodeKind = "line"
	}

	return finalized, metrics, nil
}
