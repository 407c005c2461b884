package extractor

import (
	"path"
	"strings"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// extractFileImports scans a file's raw source for import/require/include
// statements and normalizes each to chunk.Import, resolving relative paths
// against the importing file's directory and then re-rooting them to the
// repo root, per the spec's import-normalization rule. It is intentionally
// line-oriented rather than grammar-driven: imports live at the file level,
// not inside any one chunk, so every chunk produced for filePath shares
// this same slice.
func extractFileImports(language, filePath string, content []byte) []chunk.Import {
	switch language {
	case "go":
		return extractGoImports(filePath, string(content))
	case "javascript", "typescript", "tsx":
		return extractJSImports(filePath, string(content))
	case "python":
		return extractPythonImports(string(content))
	default:
		return nil
	}
}

func extractGoImports(filePath, src string) []chunk.Import {
	var imports []chunk.Import

	lines := strings.Split(src, "\n")
	inBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case inBlock:
			if imp := quotedPath(trimmed); imp != "" {
				imports = append(imports, normalizeImport(imp, filePath))
			}
		case strings.HasPrefix(trimmed, "import "):
			if imp := quotedPath(strings.TrimPrefix(trimmed, "import ")); imp != "" {
				imports = append(imports, normalizeImport(imp, filePath))
			}
		}
	}

	return imports
}

func extractJSImports(filePath, src string) []chunk.Import {
	var imports []chunk.Import

	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "import ") && !strings.Contains(trimmed, "require(") {
			continue
		}

		if imp := quotedPath(trimmed); imp != "" {
			imports = append(imports, normalizeImport(imp, filePath))
		}
	}

	return imports
}

func extractPythonImports(src string) []chunk.Import {
	var imports []chunk.Import

	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "import "):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "import "))
			name = strings.SplitN(name, " as ", 2)[0]
			imports = append(imports, chunk.Import{Path: name, Kind: chunk.ImportModule})
		case strings.HasPrefix(trimmed, "from "):
			rest := strings.TrimPrefix(trimmed, "from ")
			name := strings.SplitN(rest, " import", 2)[0]
			imports = append(imports, chunk.Import{Path: strings.TrimSpace(name), Kind: chunk.ImportModule})
		}
	}

	return imports
}

// quotedPath extracts the first double-quoted substring on a line, falling
// back to single quotes and then backticks only when none is found; used for both
// Go's string-literal import paths and JS's quoted module specifiers.
func quotedPath(line string) string {
	for _, quote := range []byte{'"', '\'', '`'} {
		start := strings.IndexByte(line, quote)
		if start < 0 {
			continue
		}

		end := strings.IndexByte(line[start+1:], quote)
		if end < 0 {
			continue
		}

		return line[start+1 : start+1+end]
	}

	return ""
}

// normalizeImport classifies an import specifier as module (an ecosystem
// name) or file (resolved against the Git root via the importing file's
// directory).
func normalizeImport(spec, filePath string) chunk.Import {
	if !strings.HasPrefix(spec, ".") {
		return chunk.Import{Path: spec, Kind: chunk.ImportModule}
	}

	dir := path.Dir(filePath)
	resolved := path.Clean(path.Join(dir, spec))

	return chunk.Import{Path: resolved, Kind: chunk.ImportFile}
}
