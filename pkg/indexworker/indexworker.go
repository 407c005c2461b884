// Package indexworker implements the Indexer Worker (C5): it drains the
// durable queue into the search backend with bounded concurrency, bulk
// batching, retries, and partial-failure reconciliation.
package indexworker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
)

const tracerName = "semantic-code-search-indexer/indexworker"

// Config tunes one Worker's run.
type Config struct {
	Index           string
	Concurrency     int
	BatchSize       int
	MaxRetries      int
	Watch           bool
	PollingInterval time.Duration
	StaleTimeout    time.Duration
	Logger          *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BatchMetrics summarizes one drain run.
type BatchMetrics struct {
	BatchesProcessed int // fully succeeded
	BatchesPartial   int
	BatchesFailed    int // no item succeeded (transport error or every document rejected)
	ChunksIndexed    int
	TotalDuration    time.Duration
}

// Worker drains q into backend with bounded concurrency.
type Worker struct {
	q       queue.Queue
	backend searchbackend.Client
	cfg     Config
}

// New builds a Worker, applying defaults for unset fields (4 concurrent
// batches, 500-item batches, 3 retries, 1s poll, 5-minute stale lease
// timeout).
func New(q queue.Queue, backend searchbackend.Client, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = queue.DefaultMaxRetries
	}

	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = queue.DefaultPollingInterval
	}

	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = queue.DefaultStaleTimeout
	}

	return &Worker{q: q, backend: backend, cfg: cfg}
}

// Run drains the queue until empty (non-watch mode) or until ctx is
// cancelled (watch mode). On start it unconditionally requeues stale
// tasks left behind by a crashed prior run. It returns once every
// in-flight batch it scheduled has finished, even if ctx was cancelled
// mid-run — in-flight batches are never abandoned mid-bulk.
func (w *Worker) Run(ctx context.Context) (BatchMetrics, error) {
	logger := w.cfg.logger()

	tr := otel.Tracer(tracerName)
	runCtx, span := tr.Start(ctx, "indexer.drain", trace.WithAttributes(
		attribute.String("indexer.index", w.cfg.Index),
		attribute.Int("indexer.concurrency", w.cfg.Concurrency),
	))
	defer span.End()

	if _, err := w.q.RequeueStaleTasks(runCtx, w.cfg.StaleTimeout); err != nil {
		return BatchMetrics{}, fmt.Errorf("requeue stale tasks: %w", err)
	}

	var (
		mu      sync.Mutex
		metrics BatchMetrics
		wg      sync.WaitGroup
	)

	sem := make(chan struct{}, w.cfg.Concurrency)
	workerPID := os.Getpid()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		items, err := w.q.Dequeue(runCtx, w.cfg.BatchSize, workerPID)
		if err != nil {
			wg.Wait()

			return metrics, fmt.Errorf("dequeue batch: %w", err)
		}

		if len(items) == 0 {
			if w.cfg.Watch {
				select {
				case <-ctx.Done():
					break loop
				case <-time.After(w.cfg.PollingInterval):
				}

				continue
			}

			completed, isErr := w.q.IsEnqueueCompleted(runCtx)
			if isErr != nil {
				wg.Wait()

				return metrics, fmt.Errorf("check enqueue-completed latch: %w", isErr)
			}

			if completed {
				break loop
			}

			select {
			case <-ctx.Done():
				break loop
			case <-time.After(w.cfg.PollingInterval):
			}

			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(batch []queue.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			bm := w.processBatch(runCtx, logger, batch)

			mu.Lock()
			metrics.BatchesProcessed += bm.BatchesProcessed
			metrics.BatchesPartial += bm.BatchesPartial
			metrics.BatchesFailed += bm.BatchesFailed
			metrics.ChunksIndexed += bm.ChunksIndexed
			metrics.TotalDuration += bm.TotalDuration
			mu.Unlock()
		}(items)
	}

	wg.Wait()

	return metrics, nil
}

func (w *Worker) processBatch(ctx context.Context, logger *slog.Logger, items []queue.Item) BatchMetrics {
	tr := otel.Tracer(tracerName)
	ctx, span := tr.Start(ctx, "indexer.batch", trace.WithAttributes(attribute.Int("indexer.batch_size", len(items))))
	defer span.End()

	start := time.Now()

	chunks := make([]chunk.Chunk, 0, len(items))
	byHash := make(map[string]queue.Item, len(items))

	for _, item := range items {
		var c chunk.Chunk

		if err := decodeChunk(item.Document, &c); err != nil {
			logger.ErrorContext(ctx, "indexworker: failed to decode queue item", "item_id", item.ID, "error", err)

			continue
		}

		chunks = append(chunks, c)
		byHash[c.ChunkHash] = item
	}

	result, err := w.backend.BulkIndex(ctx, w.cfg.Index, chunks)
	duration := time.Since(start)

	if err != nil {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}

		if requeueErr := w.q.Requeue(ctx, ids, w.cfg.MaxRetries); requeueErr != nil {
			logger.ErrorContext(ctx, "indexworker: requeue-after-transport-failure failed", "error", requeueErr)
		}

		return BatchMetrics{BatchesFailed: 1, TotalDuration: duration}
	}

	succeededIDs := make([]int64, 0, len(result.Succeeded))

	for _, c := range result.Succeeded {
		if item, ok := byHash[c.ChunkHash]; ok {
			succeededIDs = append(succeededIDs, item.ID)
		}
	}

	if len(succeededIDs) > 0 {
		if commitErr := w.q.Commit(ctx, succeededIDs); commitErr != nil {
			logger.ErrorContext(ctx, "indexworker: commit failed", "error", commitErr)
		}
	}

	failedIDs := make([]int64, 0, len(result.Failed))

	for _, f := range result.Failed {
		item, ok := byHash[f.Chunk.ChunkHash]
		if !ok {
			continue
		}

		logger.WarnContext(ctx, "indexworker: chunk rejected by backend",
			"item_id", item.ID, "chunk_hash", f.Chunk.ChunkHash, "error", f.Error)

		failedIDs = append(failedIDs, item.ID)
	}

	if len(failedIDs) > 0 {
		if requeueErr := w.q.Requeue(ctx, failedIDs, w.cfg.MaxRetries); requeueErr != nil {
			logger.ErrorContext(ctx, "indexworker: requeue failed", "error", requeueErr)
		}
	}

	bm := BatchMetrics{ChunksIndexed: len(result.Succeeded), TotalDuration: duration}

	switch {
	case len(result.Failed) == 0:
		bm.BatchesProcessed = 1
	case len(result.Succeeded) == 0:
		bm.BatchesFailed = 1
	default:
		bm.BatchesPartial = 1
	}

	return bm
}
