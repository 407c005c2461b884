package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/c_sharp"
	"github.com/alexaandru/go-sitter-forest/cpp"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/json"
	"github.com/alexaandru/go-sitter-forest/php"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/ruby"
	"github.com/alexaandru/go-sitter-forest/rust"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// CaptureRules is opaque to everything except the tree-sitter extractor:
// the set of grammar node kinds that become chunks, symbols and exports
// for one language. The core treats this as configuration data, per the
// "tree-sitter queries as a collaborator" design note.
type CaptureRules struct {
	// ChunkNodeKinds are grammar node types that each become one Chunk
	// (function/method/class/struct/interface declarations, etc).
	ChunkNodeKinds []string
	// ContainerNodeKinds are ancestor node types that count as a
	// structural container for ContainerPath purposes.
	ContainerNodeKinds []string
	// SymbolNodeKinds map a grammar node type to the symbol kind
	// recorded in Chunk.Symbols.
	SymbolNodeKinds map[string]string
	// ExportFilter decides whether a top-level chunk at name/kind is an
	// export. The built-in table uses an uppercase first letter for Go and
	// a name without a leading underscore for Python functions and classes
	// (module-level constants are not captured); every other language, Java
	// included, marks every named top-level chunk as an export, and no
	// modifier such as Java's public is consulted.
	ExportFilter func(name, nodeKind string) bool
}

func exportIfUppercase(name, _ string) bool {
	return name != "" && strings.ToUpper(name[:1]) == name[:1]
}

func exportAllTopLevel(_, _ string) bool {
	return true
}

// DefaultTreeSitterLanguages returns the built-in LanguageConfig set for
// tree-sitter-backed languages. Grammar wiring mirrors the teacher's
// tabular registration (pkg/uast/languages.go); capture rules are scoped
// down from the teacher's full UAST mapping DSL to the chunk/symbol/export
// triad this spec actually needs.
func DefaultTreeSitterLanguages() []LanguageConfig {
	return []LanguageConfig{
		{
			Name: "go", Suffixes: []string{"go"}, GrammarHandle: "go",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_declaration", "method_declaration", "type_declaration"},
				ContainerNodeKinds: []string{"type_declaration", "function_declaration"},
				SymbolNodeKinds: map[string]string{
					"function_declaration": "function",
					"method_declaration":   "method",
					"type_declaration":      "type",
				},
				ExportFilter: exportIfUppercase,
			},
		},
		{
			Name: "python", Suffixes: []string{"py"}, GrammarHandle: "python",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_definition", "class_definition"},
				ContainerNodeKinds: []string{"class_definition", "function_definition"},
				SymbolNodeKinds: map[string]string{
					"function_definition": "function",
					"class_definition":    "class",
				},
				ExportFilter: func(name, _ string) bool {
					return !strings.HasPrefix(name, "_")
				},
			},
		},
		{
			Name: "javascript", Suffixes: []string{"js", "jsx", "mjs", "cjs"}, GrammarHandle: "javascript",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_declaration", "class_declaration", "method_definition"},
				ContainerNodeKinds: []string{"class_declaration", "function_declaration"},
				SymbolNodeKinds: map[string]string{
					"function_declaration": "function",
					"class_declaration":    "class",
					"method_definition":    "method",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "typescript", Suffixes: []string{"ts"}, GrammarHandle: "typescript",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_declaration", "class_declaration", "method_definition", "interface_declaration"},
				ContainerNodeKinds: []string{"class_declaration", "interface_declaration"},
				SymbolNodeKinds: map[string]string{
					"function_declaration":  "function",
					"class_declaration":     "class",
					"method_definition":     "method",
					"interface_declaration": "interface",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "tsx", Suffixes: []string{"tsx"}, GrammarHandle: "tsx",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_declaration", "class_declaration", "method_definition"},
				ContainerNodeKinds: []string{"class_declaration"},
				SymbolNodeKinds: map[string]string{
					"function_declaration": "function",
					"class_declaration":    "class",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "java", Suffixes: []string{"java"}, GrammarHandle: "java",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"method_declaration", "class_declaration", "interface_declaration"},
				ContainerNodeKinds: []string{"class_declaration", "interface_declaration"},
				SymbolNodeKinds: map[string]string{
					"method_declaration":    "method",
					"class_declaration":     "class",
					"interface_declaration": "interface",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "c", Suffixes: []string{"c", "h"}, GrammarHandle: "c",
			CaptureRules: CaptureRules{
				ChunkNodeKinds: []string{"function_definition", "struct_specifier"},
				SymbolNodeKinds: map[string]string{
					"function_definition": "function",
					"struct_specifier":    "struct",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "cpp", Suffixes: []string{"cpp", "cc", "hpp", "hh"}, GrammarHandle: "cpp",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_definition", "class_specifier", "struct_specifier"},
				ContainerNodeKinds: []string{"class_specifier", "struct_specifier"},
				SymbolNodeKinds: map[string]string{
					"function_definition": "function",
					"class_specifier":     "class",
					"struct_specifier":    "struct",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "c_sharp", Suffixes: []string{"cs"}, GrammarHandle: "c_sharp",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"method_declaration", "class_declaration", "interface_declaration"},
				ContainerNodeKinds: []string{"class_declaration", "interface_declaration"},
				SymbolNodeKinds: map[string]string{
					"method_declaration":    "method",
					"class_declaration":     "class",
					"interface_declaration": "interface",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "rust", Suffixes: []string{"rs"}, GrammarHandle: "rust",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_item", "struct_item", "impl_item", "trait_item"},
				ContainerNodeKinds: []string{"impl_item", "trait_item"},
				SymbolNodeKinds: map[string]string{
					"function_item": "function",
					"struct_item":   "struct",
					"trait_item":    "trait",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "ruby", Suffixes: []string{"rb"}, GrammarHandle: "ruby",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"method", "class", "module"},
				ContainerNodeKinds: []string{"class", "module"},
				SymbolNodeKinds: map[string]string{
					"method": "method",
					"class":  "class",
					"module": "module",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "php", Suffixes: []string{"php"}, GrammarHandle: "php",
			CaptureRules: CaptureRules{
				ChunkNodeKinds:     []string{"function_definition", "class_declaration", "method_declaration"},
				ContainerNodeKinds: []string{"class_declaration"},
				SymbolNodeKinds: map[string]string{
					"function_definition": "function",
					"class_declaration":   "class",
					"method_declaration":  "method",
				},
				ExportFilter: exportAllTopLevel,
			},
		},
		{
			Name: "json", Suffixes: []string{}, GrammarHandle: "json",
			CaptureRules: CaptureRules{},
		},
	}
}

// grammarFuncs is the tabular registration the design note asks for: one
// entry per tree-sitter grammar, keyed by language name, mirroring the
// teacher's pkg/uast/languages.go table.
var grammarFuncs = map[string]func() unsafe.Pointer{
	"go":         golang.GetLanguage,
	"python":     python.GetLanguage,
	"javascript": javascript.GetLanguage,
	"typescript": typescript.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"java":       java.GetLanguage,
	"c":          c.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"c_sharp":    c_sharp.GetLanguage,
	"rust":       rust.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"php":        php.GetLanguage,
	"json":       json.GetLanguage,
}

var grammarCache sync.Map

// lookupGrammar returns the cached *sitter.Language for name, or nil.
func lookupGrammar(name string) *sitter.Language {
	if cached, ok := grammarCache.Load(name); ok {
		lang, _ := cached.(*sitter.Language)
		return lang
	}

	fn, ok := grammarFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	grammarCache.Store(name, lang)

	return lang
}

// treeSitterExtractor runs a language's grammar against the parse tree and
// emits one Chunk per captured node kind, per CaptureRules.
type treeSitterExtractor struct {
	cfg        LanguageConfig
	parserPool sync.Pool
}

func newTreeSitterExtractor(cfg LanguageConfig) Extractor {
	lang := lookupGrammar(cfg.GrammarHandle)

	return &treeSitterExtractor{
		cfg: cfg,
		parserPool: sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				if lang != nil {
					p.SetLanguage(lang)
				}

				return p
			},
		},
	}
}

func (e *treeSitterExtractor) Extract(ctx context.Context, filePath, gitBranch string, content []byte, maxChunkSizeBytes int) ([]chunk.Chunk, Metrics, error) {
	metrics := newMetrics(e.cfg.Name)

	parser, ok := e.parserPool.Get().(*sitter.Parser)
	if !ok {
		metrics.FilesFailed++
		return nil, metrics, &ParseError{FilePath: filePath, Reason: "parser pool returned wrong type"}
	}
	defer e.parserPool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		metrics.FilesFailed++
		return nil, metrics, &ParseError{FilePath: filePath, Reason: fmt.Sprintf("tree-sitter parse: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		metrics.FilesFailed++
		return nil, metrics, &ParseError{FilePath: filePath, Reason: "empty parse tree"}
	}

	var raw []chunk.Chunk

	walkCaptures(root, content, e.cfg.CaptureRules, "", &raw)

	metrics.FilesProcessed++

	finalized := finalizeChunks(raw, gitBranch, chunk.Hash(string(content)), chunk.KindCode, maxChunkSizeBytes, &metrics)

	imports := extractFileImports(e.cfg.Name, filePath, content)
	for i := range finalized {
		finalized[i].FilePath = filePath
		finalized[i].Language = e.cfg.Name
		finalized[i].Imports = imports
	}

	return finalized, metrics, nil
}

// walkCaptures recurses the parse tree, emitting a raw Chunk for every node
// whose type is in rules.ChunkNodeKinds. Each node is visited once; a
// captured node nested inside another (a method inside a class) yields its
// own chunk whose lines lie within the enclosing chunk's lines.
func walkCaptures(n sitter.Node, source []byte, rules CaptureRules, containerPath string, out *[]chunk.Chunk) {
	if n.IsNull() {
		return
	}

	nodeType := n.Type()

	nextContainer := containerPath
	if containsString(rules.ContainerNodeKinds, nodeType) {
		if name := childIdentifierText(n, source); name != "" {
			if containerPath == "" {
				nextContainer = name
			} else {
				nextContainer = containerPath + "." + name
			}
		}
	}

	if containsString(rules.ChunkNodeKinds, nodeType) {
		start, end := n.StartPoint(), n.EndPoint()
		text := string(source[n.StartByte():n.EndByte()])

		c := chunk.New("", text, int(start.Row)+1, int(end.Row)+1)
		c.NodeKind = nodeType
		c.ContainerPath = containerPath

		name := childIdentifierText(n, source)
		if kind, ok := rules.SymbolNodeKinds[nodeType]; ok && name != "" {
			c.Symbols = append(c.Symbols, chunk.Symbol{Name: name, Kind: kind, Line: int(start.Row) + 1})

			if rules.ExportFilter != nil && containerPath == "" && rules.ExportFilter(name, nodeType) {
				c.Exports = append(c.Exports, chunk.Export{Name: name, Kind: chunk.ExportNamed})
			}
		}

		*out = append(*out, c)
	}

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		walkCaptures(n.NamedChild(i), source, rules, nextContainer, out)
	}
}

// childIdentifierText finds the first "identifier"-ish named child's text,
// used to name a chunk's symbol and to build container paths.
func childIdentifierText(n sitter.Node, source []byte) string {
	fieldNode := n.ChildByFieldName("name")
	if !fieldNode.IsNull() {
		return string(source[fieldNode.StartByte():fieldNode.EndByte()])
	}

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)
		if strings.Contains(child.Type(), "identifier") {
			return string(source[child.StartByte():child.EndByte()])
		}
	}

	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
