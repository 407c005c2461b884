// Package searchbackend is the Search Backend Client collaborator (C8):
// bulk index, delete-by-path, and commit-anchor storage, consumed by the
// core through a narrow interface so the wire protocol stays external.
package searchbackend

import (
	"context"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// BulkFailure pairs a chunk that failed to index with the backend's
// diagnostic for why, so the worker can requeue with a preserved error.
type BulkFailure struct {
	Chunk chunk.Chunk
	Error string
}

// BulkResult is the per-document outcome split a bulk write must report;
// a boolean success/failure would make partial-batch reconciliation
// impossible.
type BulkResult struct {
	Succeeded []chunk.Chunk
	Failed    []BulkFailure
}

// Client is the search backend collaborator the core depends on. Document
// id on bulk writes is the chunk's content hash (chunk_hash).
type Client interface {
	// EnsureIndex creates index if it does not already exist.
	EnsureIndex(ctx context.Context, index string) error

	// EnsureSettingsIndex creates the anchor/settings index if it does
	// not already exist.
	EnsureSettingsIndex(ctx context.Context, index string) error

	// DeleteIndex removes index entirely, used when a clean re-index is
	// requested.
	DeleteIndex(ctx context.Context, index string) error

	// BulkIndex writes chunks to index, returning the succeeded/failed
	// split. On transport failure the whole batch is reported failed.
	BulkIndex(ctx context.Context, index string, chunks []chunk.Chunk) (BulkResult, error)

	// DeleteByFilePath removes every chunk indexed under path from
	// index.
	DeleteByFilePath(ctx context.Context, index, path string) error

	// GetAnchor returns the last recorded commit hash for branch, or ""
	// if none has been recorded yet.
	GetAnchor(ctx context.Context, settingsIndex, branch string) (string, error)

	// PutAnchor records hash as the most recently fully-drained commit
	// for branch.
	PutAnchor(ctx context.Context, settingsIndex, branch, hash string) error
}
