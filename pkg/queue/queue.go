// Package queue defines the durable work queue contract (C1): an
// at-least-once FIFO of chunks local to a single (repository, branch) pair,
// with lease, retry and stale-recovery semantics.
package queue

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a QueueItem.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
)

const (
	// DefaultMaxRetries bounds how many times an item is requeued before it
	// is parked in StatusFailed.
	DefaultMaxRetries = 3
	// DefaultStaleTimeout is how long a processing lease may go unrenewed
	// before requeueStaleTasks reclaims it.
	DefaultStaleTimeout = 5 * time.Minute
	// DefaultPollingInterval is how long the worker sleeps between empty
	// dequeues in watch mode.
	DefaultPollingInterval = time.Second
)

// Sentinel errors surfaced by Queue implementations, matching the
// StorageError taxonomy entry.
var (
	ErrStorage       = errors.New("queue storage error")
	ErrClosed        = errors.New("queue is closed")
	ErrEnqueueClosed = errors.New("queue enqueue already completed")
)

// Item is a durable envelope around a serialized Chunk.
type Item struct {
	CreatedAt           time.Time
	ProcessingStartedAt *time.Time
	WorkerPID           *int
	BatchID             string
	Document            []byte
	Status              Status
	ID                  int64
	RetryCount          int
}

// Stats summarizes queue occupancy for metrics scraping.
type Stats struct {
	Pending    int64
	Processing int64
	Failed     int64
}

// Queue is the contract the Indexer Worker (C5) and Pipeline Orchestrator
// (C7) consume. An in-memory implementation (memqueue) and a durable
// SQLite-backed implementation (sqlitequeue) both satisfy it, per the
// design note that test doubles must honor the same at-least-once, lease,
// clear and enqueue-completed-latch contract as production.
type Queue interface {
	// Enqueue atomically appends all documents under a single batch id.
	// Returns after the write is durable.
	Enqueue(ctx context.Context, batchID string, documents [][]byte) error

	// Dequeue selects up to n pending items in FIFO order, atomically
	// flips them to processing, and stamps the lease fields. It may
	// return fewer than n items.
	Dequeue(ctx context.Context, n int, workerPID int) ([]Item, error)

	// Commit deletes the listed items. Idempotent on repeat.
	Commit(ctx context.Context, ids []int64) error

	// Requeue transitions each item back to pending (incrementing
	// RetryCount) or, once MAX_RETRIES is reached, to failed.
	Requeue(ctx context.Context, ids []int64, maxRetries int) error

	// Clear removes all rows and resets the enqueue-completed latch.
	Clear(ctx context.Context) error

	// MarkEnqueueCompleted sets the one-way latch the producer flips once
	// it has finished enqueueing for this run.
	MarkEnqueueCompleted(ctx context.Context) error

	// IsEnqueueCompleted reports the latch's current value.
	IsEnqueueCompleted(ctx context.Context) (bool, error)

	// RequeueStaleTasks resets processing items whose owner pid is gone
	// or whose lease has exceeded staleTimeout back to pending.
	RequeueStaleTasks(ctx context.Context, staleTimeout time.Duration) (int, error)

	// RequeueFailed flips every failed item back to pending with its
	// retry count reset to zero. It is the operator-triggered retry
	// utility called out in the error handling design, not part of the
	// worker's own loop.
	RequeueFailed(ctx context.Context) (int, error)

	// Stats reports current occupancy by status.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any underlying resources (file handles, db
	// connections).
	Close() error
}

// ProcessLiveness checks whether the given pid refers to a still-running
// process on this host. Implementations live per-OS; queue consumers only
// depend on this signature.
type ProcessLiveness func(pid int) bool
