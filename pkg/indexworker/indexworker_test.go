package indexworker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/indexworker"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue/memqueue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(chunks []chunk.Chunk) (searchbackend.BulkResult, error)
}

func (f *fakeBackend) EnsureIndex(context.Context, string) error          { return nil }
func (f *fakeBackend) EnsureSettingsIndex(context.Context, string) error  { return nil }
func (f *fakeBackend) DeleteIndex(context.Context, string) error          { return nil }
func (f *fakeBackend) DeleteByFilePath(context.Context, string, string) error { return nil }
func (f *fakeBackend) GetAnchor(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeBackend) PutAnchor(context.Context, string, string, string) error  { return nil }

func (f *fakeBackend) BulkIndex(_ context.Context, _ string, chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	return f.fn(chunks)
}

func enqueueChunks(t *testing.T, q *memqueue.Queue, hashes ...string) {
	t.Helper()

	docs := make([][]byte, 0, len(hashes))

	for _, h := range hashes {
		data, err := indexworker.EncodeChunk(chunk.Chunk{ChunkHash: h})
		require.NoError(t, err)
		docs = append(docs, data)
	}

	require.NoError(t, q.Enqueue(t.Context(), "batch-1", docs))
}

func TestRunDrainsQueueUntilEmptyNonWatchMode(t *testing.T) {
	q := memqueue.New(nil)
	enqueueChunks(t, q, "h1", "h2", "h3")
	require.NoError(t, q.MarkEnqueueCompleted(t.Context()))

	backend := &fakeBackend{fn: func(chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
		return searchbackend.BulkResult{Succeeded: chunks}, nil
	}}

	w := indexworker.New(q, backend, indexworker.Config{Index: "code", BatchSize: 10})

	metrics, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.ChunksIndexed)
	assert.Equal(t, 1, metrics.BatchesProcessed)

	stats, err := q.Stats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestPartialBulkFailureReconciles(t *testing.T) {
	q := memqueue.New(nil)
	enqueueChunks(t, q, "h1", "h2", "h3")
	require.NoError(t, q.MarkEnqueueCompleted(t.Context()))

	backend := &fakeBackend{fn: func(chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
		result := searchbackend.BulkResult{}
		for i, c := range chunks {
			if i == 0 {
				result.Succeeded = append(result.Succeeded, c)
			} else {
				result.Failed = append(result.Failed, searchbackend.BulkFailure{Chunk: c, Error: "mapper_parsing_exception"})
			}
		}

		return result, nil
	}}

	w := indexworker.New(q, backend, indexworker.Config{Index: "code", BatchSize: 10, MaxRetries: 3})

	metrics, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.ChunksIndexed)
	assert.Equal(t, 1, metrics.BatchesPartial)
	assert.Zero(t, metrics.BatchesProcessed)

	stats, err := q.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
}

func TestTransportFailureRequeuesWholeBatch(t *testing.T) {
	q := memqueue.New(nil)
	enqueueChunks(t, q, "h1", "h2")
	require.NoError(t, q.MarkEnqueueCompleted(t.Context()))

	backend := &fakeBackend{fn: func([]chunk.Chunk) (searchbackend.BulkResult, error) {
		return searchbackend.BulkResult{}, errors.New("connection reset")
	}}

	w := indexworker.New(q, backend, indexworker.Config{Index: "code", BatchSize: 10, MaxRetries: 3})

	metrics, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.BatchesFailed)

	stats, err := q.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
}

func TestEmptyQueueWithCompletedLatchExitsImmediately(t *testing.T) {
	q := memqueue.New(nil)
	require.NoError(t, q.MarkEnqueueCompleted(t.Context()))

	backend := &fakeBackend{fn: func(chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
		return searchbackend.BulkResult{Succeeded: chunks}, nil
	}}

	w := indexworker.New(q, backend, indexworker.Config{Index: "code"})

	metrics, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Zero(t, metrics.ChunksIndexed)
	assert.Zero(t, backend.calls)
}
