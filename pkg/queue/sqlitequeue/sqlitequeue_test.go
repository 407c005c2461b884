package sqlitequeue_test

import (
	"context"
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue/sqlitequeue"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *sqlitequeue.Queue {
	t.Helper()

	q, err := sqlitequeue.Open(":memory:", func(int) bool { return false })
	require.NoError(t, err)

	t.Cleanup(func() { _ = q.Close() })

	return q
}

func TestEnqueueDequeueCommit(t *testing.T) {
	q := open(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "batch-1", [][]byte{[]byte(`{"a":1}`), []byte(`{"a":2}`)}))

	items, err := q.Dequeue(ctx, 10, 42)
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, it := range items {
		require.Equal(t, queue.StatusProcessing, it.Status)
		require.NotNil(t, it.WorkerPID)
		require.Equal(t, 42, *it.WorkerPID)
	}

	ids := []int64{items[0].ID, items[1].ID}
	require.NoError(t, q.Commit(ctx, ids))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Pending)
	require.Equal(t, int64(0), stats.Processing)
}

func TestRequeueExceedsMaxRetriesFails(t *testing.T) {
	q := open(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "batch-1", [][]byte{[]byte(`x`)}))

	var id int64

	for attempt := 0; attempt < queue.DefaultMaxRetries; attempt++ {
		items, err := q.Dequeue(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, items, 1)

		id = items[0].ID
		require.NoError(t, q.Requeue(ctx, []int64{id}, queue.DefaultMaxRetries))
	}

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Failed)

	items, err := q.Dequeue(ctx, 1, 1)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestRequeueStaleTasksDeadWorker(t *testing.T) {
	q := open(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "batch-1", [][]byte{[]byte(`x`), []byte(`y`)}))

	items, err := q.Dequeue(ctx, 2, 1234)
	require.NoError(t, err)
	require.Len(t, items, 2)

	n, err := q.RequeueStaleTasks(ctx, queue.DefaultStaleTimeout)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Pending)
}

func TestMarkAndIsEnqueueCompleted(t *testing.T) {
	q := open(t)
	ctx := context.Background()

	done, err := q.IsEnqueueCompleted(ctx)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, q.MarkEnqueueCompleted(ctx))

	done, err = q.IsEnqueueCompleted(ctx)
	require.NoError(t, err)
	require.True(t, done)
}

func TestClearResetsQueueAndLatch(t *testing.T) {
	q := open(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "batch-1", [][]byte{[]byte(`x`)}))
	require.NoError(t, q.MarkEnqueueCompleted(ctx))
	require.NoError(t, q.Clear(ctx))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Pending)

	done, err := q.IsEnqueueCompleted(ctx)
	require.NoError(t, err)
	require.False(t, done)
}
