// Package chunk defines the indexable unit produced by the extractor and
// carried through the queue to the search backend.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Kind distinguishes source code chunks from documentation chunks.
type Kind string

const (
	KindCode Kind = "code"
	KindDoc  Kind = "doc"
)

// ImportKind classifies where an import resolves to.
type ImportKind string

const (
	ImportModule ImportKind = "module"
	ImportFile   ImportKind = "file"
)

// ExportKind classifies how a symbol is exported.
type ExportKind string

const (
	ExportNamed   ExportKind = "named"
	ExportDefault ExportKind = "default"
)

// Import is a single normalized import edge out of a chunk's file.
type Import struct {
	Path    string     `json:"path"`
	Kind    ImportKind `json:"kind"`
	Symbols []string   `json:"symbols,omitempty"`
}

// Symbol is a named declaration captured inside a chunk.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
}

// Export is a symbol visible outside its declaring file.
type Export struct {
	Name string     `json:"name"`
	Kind ExportKind `json:"kind"`
}

// Chunk is the smallest indexable unit, content-addressed by SHA-256 over
// its text.
type Chunk struct {
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Kind          Kind       `json:"kind"`
	Language      string     `json:"language"`
	NodeKind      string     `json:"node_kind"`
	ContainerPath string     `json:"container_path,omitempty"`
	FilePath      string     `json:"file_path"`
	DirectoryPath string     `json:"directory_path"`
	DirectoryName string     `json:"directory_name"`
	Branch        string     `json:"branch"`
	GitFileHash   string     `json:"git_file_hash"`
	ChunkHash     string     `json:"chunk_hash"`
	Content       string     `json:"content"`
	SemanticText  string     `json:"semantic_text"`
	Imports       []Import   `json:"imports,omitempty"`
	Symbols       []Symbol   `json:"symbols,omitempty"`
	Exports       []Export   `json:"exports,omitempty"`
	StartLine     int        `json:"start_line"`
	EndLine       int        `json:"end_line"`
	DirectoryDepth int       `json:"directory_depth"`
}

// Hash computes the content-addressed id for the given chunk text.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// New builds a Chunk, deriving its hash, semantic text and directory fields
// from the given relative path. Callers set Language, NodeKind, Kind,
// ContainerPath, Branch and GitFileHash afterwards.
func New(filePath, content string, startLine, endLine int) Chunk {
	now := time.Now().UTC()

	dirPath, dirName, depth := directoryFields(filePath)

	c := Chunk{
		FilePath:       filePath,
		DirectoryPath:  dirPath,
		DirectoryName:  dirName,
		DirectoryDepth: depth,
		Content:        content,
		ChunkHash:      Hash(content),
		StartLine:      startLine,
		EndLine:        endLine,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.SemanticText = BuildSemanticText(c)

	return c
}

// BuildSemanticText renders the header+blank-line+content text the search
// backend's embedding pipeline consumes.
func BuildSemanticText(c Chunk) string {
	var b strings.Builder

	b.WriteString("filePath: ")
	b.WriteString(c.FilePath)
	b.WriteString("\nkind: ")
	b.WriteString(string(c.Kind))
	b.WriteString("\ncontainerPath: ")
	b.WriteString(c.ContainerPath)
	b.WriteString("\n\n")
	b.WriteString(c.Content)

	return b.String()
}

// directoryFields derives directory path/name/depth purely from a
// repo-relative, forward-slash path.
func directoryFields(relativePath string) (dirPath, dirName string, depth int) {
	idx := strings.LastIndex(relativePath, "/")
	if idx < 0 {
		return "", "", 0
	}

	dirPath = relativePath[:idx]
	depth = strings.Count(dirPath, "/") + 1

	if last := strings.LastIndex(dirPath, "/"); last >= 0 {
		dirName = dirPath[last+1:]
	} else {
		dirName = dirPath
	}

	return dirPath, dirName, depth
}

// Valid reports whether the chunk satisfies the invariants required before
// it may be enqueued: content-addressed hash, ordered lines, and a size
// ceiling enforced by the caller (maxChunkSizeBytes is extractor config, not
// part of the chunk itself).
func Valid(c Chunk) bool {
	if c.StartLine > c.EndLine {
		return false
	}

	return c.ChunkHash == Hash(c.Content)
}
