// Package extractor implements the Language Extractor (C2): mapping one
// file's raw bytes to an ordered sequence of chunks with symbols, imports
// and exports.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// ErrUnsupportedExtension signals a file whose extension maps to no known
// language; this is not an error condition for the caller, merely a skip.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ParseError wraps a file that could not be parsed. Non-fatal: the file is
// dropped, a metric increments, and the run continues.
type ParseError struct {
	FilePath string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.FilePath, e.Reason)
}

// Metrics accompanies every extraction, win or lose.
type Metrics struct {
	Language        string
	FilesProcessed  int
	FilesFailed     int
	ChunksCreated   int
	ChunksSkipped   int
	ChunkSizeBucket map[string]int
}

func newMetrics(language string) Metrics {
	return Metrics{Language: language, ChunkSizeBucket: make(map[string]int)}
}

func (m *Metrics) observeChunkSize(size int) {
	bucket := sizeBucket(size)
	m.ChunkSizeBucket[bucket]++
}

func sizeBucket(size int) string {
	switch {
	case size < 256:
		return "<256"
	case size < 1024:
		return "<1k"
	case size < 8192:
		return "<8k"
	case size < 65536:
		return "<64k"
	default:
		return ">=64k"
	}
}

// Extractor converts a single file into chunks. Implementations are either
// tree-sitter-backed or a custom per-format splitter, per the design note
// that models the extractor as a variant over {TreeSitter, Custom} routed
// at extension lookup.
type Extractor interface {
	// Extract parses content (the file's raw bytes) belonging to filePath
	// (repo-relative, forward-slash) on gitBranch into chunks in source
	// order, applying maxChunkSizeBytes as the oversized-chunk skip
	// threshold.
	Extract(ctx context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error)
}

// finalizeChunks sorts by (startLine, endLine), stamps branch/hash/kind,
// drops oversized chunks, and derives the semantic text — the common tail
// every Extractor implementation funnels through so the ordering and
// size-skip guarantees in the spec hold uniformly.
func finalizeChunks(raw []chunk.Chunk, gitBranch, gitFileHash string, kind chunk.Kind, maxChunkSizeBytes int, metrics *Metrics) []chunk.Chunk {
	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].StartLine != raw[j].StartLine {
			return raw[i].StartLine < raw[j].StartLine
		}

		return raw[i].EndLine < raw[j].EndLine
	})

	out := make([]chunk.Chunk, 0, len(raw))

	seen := make(map[string]struct{}, len(raw))

	for _, c := range raw {
		if maxChunkSizeBytes > 0 && len(c.Content) > maxChunkSizeBytes {
			metrics.ChunksSkipped++
			continue
		}

		dedupKey := fmt.Sprintf("%d:%d:%s", c.StartLine, c.EndLine, c.ChunkHash)
		if _, dup := seen[dedupKey]; dup {
			continue
		}

		seen[dedupKey] = struct{}{}

		c.Branch = gitBranch
		c.GitFileHash = gitFileHash
		c.Kind = kind
		c.SemanticText = chunk.BuildSemanticText(c)

		metrics.observeChunkSize(len(c.Content))
		metrics.ChunksCreated++

		out = append(out, c)
	}

	return out
}

// extensionOf returns the lowercase suffix after the last dot, or "" for an
// extensionless file.
func extensionOf(filePath string) string {
	idx := strings.LastIndex(filePath, ".")
	if idx < 0 || idx == len(filePath)-1 {
		return ""
	}

	return strings.ToLower(filePath[idx+1:])
}
