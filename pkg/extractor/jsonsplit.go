package extractor

import (
	"context"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// jsonExtractor splits a JSON document into its top-level properties, each
// becoming a chunk spanning the lines its value occupies. It is a
// deliberately shallow splitter — the spec asks only for "reasonable
// per-element splits with accurate start/end lines", not a full JSON AST.
type jsonExtractor struct{}

// NewJSONExtractor returns the custom JSON splitter.
func NewJSONExtractor() Extractor {
	return &jsonExtractor{}
}

// jsonProperty is one raw top-level "key": value span found by the
// depth-tracking scanner below.
type jsonProperty struct {
	text      string
	startLine int
	endLine   int
}

func (e *jsonExtractor) Extract(_ context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	metrics := newMetrics("json")

	properties := splitTopLevelProperties(string(content))

	raw := make([]chunk.Chunk, 0, len(properties))
	for _, p := range properties {
		raw = append(raw, chunk.New("", p.text, p.startLine, p.endLine))
	}

	metrics.FilesProcessed++

	finalized := finalizeChunks(raw, gitBranch, chunk.Hash(string(content)), chunk.KindDoc, maxChunkSizeBytes, &metrics)
	for i := range finalized {
		finalized[i].FilePath = filePath
		finalized[i].Language = "json"
		finalized[i].NodeKind = "property"
	}

	return finalized, metrics, nil
}

// splitTopLevelProperties scans a JSON object's source text and returns
// one jsonProperty per top-level "key": value pair, tracking brace/bracket
// nesting and string escaping so commas inside nested structures or
// strings do not split a property prematurely.
func splitTopLevelProperties(src string) []jsonProperty {
	depth := 0
	inString := false
	escaped := false
	line := 1

	var props []jsonProperty

	start := -1
	startLine := 1

	flush := func(end int) {
		if start < 0 {
			return
		}

		span := src[start:end]
		body := strings.TrimLeft(span, " \t\r\n")
		first := startLine + strings.Count(span[:len(span)-len(body)], "\n")

		text := strings.TrimSpace(body)
		text = strings.Trim(text, ",")
		text = strings.TrimSpace(text)

		if text != "" {
			props = append(props, jsonProperty{text: text, startLine: first, endLine: first + strings.Count(text, "\n")})
		}

		start = -1
	}

	for i := 0; i < len(src); i++ {
		ch := src[i]

		if ch == '\n' {
			line++
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}

			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++

			if depth == 1 && start < 0 {
				start = i + 1
				startLine = line
			}
		case '}', ']':
			if depth == 1 {
				flush(i)
			}

			depth--
		case ',':
			if depth == 1 {
				flush(i)

				start = i + 1
				startLine = line
			}
		default:
			if depth == 1 && start < 0 && !isJSONWhitespace(ch) {
				start = i
				startLine = line
			}
		}
	}

	return props
}

func isJSONWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
