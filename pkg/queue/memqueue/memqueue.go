// Package memqueue is an in-memory implementation of queue.Queue. It
// satisfies the exact same contract as the durable SQLite-backed queue —
// at-least-once delivery, lease, clear, and the enqueue-completed latch —
// so it can stand in for property tests and for small/ephemeral runs,
// per the design note that "an in-memory queue variant is useful for
// tests and must satisfy the same contract".
package memqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
)

// Queue is a mutex-serialized in-memory queue.Queue.
type Queue struct {
	items            map[int64]*queue.Item
	liveness         queue.ProcessLiveness
	mu               sync.Mutex
	nextID           int64
	enqueueCompleted bool
	closed           bool
}

// New constructs an empty in-memory queue. liveness defaults to
// queue.IsProcessAlive when nil.
func New(liveness queue.ProcessLiveness) *Queue {
	if liveness == nil {
		liveness = queue.IsProcessAlive
	}

	return &Queue{
		items:    make(map[int64]*queue.Item),
		liveness: liveness,
	}
}

func (q *Queue) Enqueue(_ context.Context, batchID string, documents [][]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrClosed
	}

	now := time.Now().UTC()
	for _, doc := range documents {
		q.nextID++
		q.items[q.nextID] = &queue.Item{
			ID:        q.nextID,
			BatchID:   batchID,
			Document:  doc,
			Status:    queue.StatusPending,
			CreatedAt: now,
		}
	}

	return nil
}

func (q *Queue) Dequeue(_ context.Context, n int, workerPID int) ([]queue.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, queue.ErrClosed
	}

	pending := make([]*queue.Item, 0, len(q.items))
	for _, item := range q.items {
		if item.Status == queue.StatusPending {
			pending = append(pending, item)
		}
	}

	sortByFIFO(pending)

	if n < len(pending) {
		pending = pending[:n]
	}

	now := time.Now().UTC()
	pid := workerPID
	out := make([]queue.Item, 0, len(pending))

	for _, item := range pending {
		item.Status = queue.StatusProcessing
		item.ProcessingStartedAt = &now
		item.WorkerPID = &pid
		out = append(out, *item)
	}

	return out, nil
}

func (q *Queue) Commit(_ context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range ids {
		delete(q.items, id)
	}

	return nil
}

func (q *Queue) Requeue(_ context.Context, ids []int64, maxRetries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range ids {
		item, ok := q.items[id]
		if !ok {
			continue
		}

		item.RetryCount++
		item.ProcessingStartedAt = nil
		item.WorkerPID = nil

		if item.RetryCount >= maxRetries {
			item.Status = queue.StatusFailed
		} else {
			item.Status = queue.StatusPending
		}
	}

	return nil
}

func (q *Queue) Clear(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make(map[int64]*queue.Item)
	q.enqueueCompleted = false

	return nil
}

func (q *Queue) MarkEnqueueCompleted(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enqueueCompleted = true

	return nil
}

func (q *Queue) IsEnqueueCompleted(_ context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.enqueueCompleted, nil
}

func (q *Queue) RequeueStaleTasks(_ context.Context, staleTimeout time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	reclaimed := 0

	for _, item := range q.items {
		if item.Status != queue.StatusProcessing {
			continue
		}

		stale := false

		switch {
		case item.WorkerPID == nil:
			stale = item.ProcessingStartedAt == nil || now.Sub(*item.ProcessingStartedAt) > staleTimeout
		case !q.liveness(*item.WorkerPID):
			stale = true
		case item.ProcessingStartedAt == nil:
			stale = true
		case now.Sub(*item.ProcessingStartedAt) > staleTimeout:
			stale = true
		}

		if stale {
			item.Status = queue.StatusPending
			item.ProcessingStartedAt = nil
			item.WorkerPID = nil
			reclaimed++
		}
	}

	return reclaimed, nil
}

func (q *Queue) RequeueFailed(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0

	for _, item := range q.items {
		if item.Status == queue.StatusFailed {
			item.Status = queue.StatusPending
			item.RetryCount = 0
			count++
		}
	}

	return count, nil
}

func (q *Queue) Stats(_ context.Context) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats queue.Stats

	for _, item := range q.items {
		switch item.Status {
		case queue.StatusPending:
			stats.Pending++
		case queue.StatusProcessing:
			stats.Processing++
		case queue.StatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	return nil
}

// sortByFIFO orders items by created_at then id, matching the queue's FIFO
// guarantee at insertion granularity.
func sortByFIFO(items []*queue.Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})
}
