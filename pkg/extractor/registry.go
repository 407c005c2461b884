package extractor

import (
	"context"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// LanguageConfig is the extractor configuration for one language: process-
// wide, immutable after startup. GrammarHandle is empty for custom
// (non-tree-sitter) extractors; CaptureRules are opaque to the core — the
// tree-sitter extractor interprets them, nothing else does.
type LanguageConfig struct {
	Name          string
	Suffixes      []string
	GrammarHandle string
	CaptureRules  CaptureRules
}

// Registry is the tabular extension → Extractor dispatch the design note
// calls for ("keep language registration tabular").
type Registry struct {
	bySuffix map[string]Extractor
	configs  map[string]LanguageConfig
	allowed  map[string]struct{}
}

// NewRegistry builds the default registry: tree-sitter-backed languages
// plus the custom splitters for markdown/yaml/json/properties/plaintext.
// languageAllowlist restricts registration to a subset (SEMANTIC_CODE_INDEXER_LANGUAGES);
// a nil/empty allowlist registers everything.
func NewRegistry(languageAllowlist []string) *Registry {
	r := &Registry{
		bySuffix: make(map[string]Extractor),
		configs:  make(map[string]LanguageConfig),
	}

	if len(languageAllowlist) > 0 {
		r.allowed = make(map[string]struct{}, len(languageAllowlist))
		for _, name := range languageAllowlist {
			r.allowed[strings.ToLower(name)] = struct{}{}
		}
	}

	for _, cfg := range DefaultTreeSitterLanguages() {
		r.register(cfg, newTreeSitterExtractor(cfg))
	}

	r.register(LanguageConfig{Name: "markdown-custom", Suffixes: []string{"md", "markdown"}}, NewMarkdownExtractor())
	r.register(LanguageConfig{Name: "yaml-custom", Suffixes: []string{"yaml", "yml"}}, NewYAMLExtractor())
	r.register(LanguageConfig{Name: "json-custom", Suffixes: []string{"json"}}, NewJSONExtractor())
	r.register(LanguageConfig{Name: "properties-custom", Suffixes: []string{"properties", "env", "txt", "cfg", "conf"}}, NewPlainTextExtractor())

	return r
}

func (r *Registry) register(cfg LanguageConfig, ext Extractor) {
	if r.allowed != nil {
		if _, ok := r.allowed[strings.ToLower(cfg.Name)]; !ok {
			return
		}
	}

	r.configs[cfg.Name] = cfg

	for _, suffix := range cfg.Suffixes {
		suffix = strings.ToLower(suffix)
		// First registration wins, mirroring the tree-sitter table's
		// first-occurrence semantics; custom splitters are registered
		// after the tree-sitter table so they only fill gaps unless a
		// suffix is deliberately shared (e.g. markdown has no grammar
		// conflict here).
		if _, exists := r.bySuffix[suffix]; !exists {
			r.bySuffix[suffix] = ext
		}
	}
}

// Supports reports whether filePath's extension maps to a registered
// extractor.
func (r *Registry) Supports(filePath string) bool {
	_, ok := r.bySuffix[extensionOf(filePath)]
	return ok
}

// Extract dispatches filePath to its registered Extractor. Returns
// ErrUnsupportedExtension (a skip, not an error condition) when no
// extractor is registered for the suffix.
func (r *Registry) Extract(ctx context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	ext, ok := r.bySuffix[extensionOf(filePath)]
	if !ok {
		return nil, Metrics{}, ErrUnsupportedExtension
	}

	return ext.Extract(ctx, filePath, gitBranch, content, maxChunkSizeBytes)
}
