package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesIndexedTotal = "semantic_code_indexer.files.indexed.total"
	metricChunksTotal       = "semantic_code_indexer.chunks.total"
	metricChunkDuration     = "semantic_code_indexer.chunk.duration.seconds"
	metricBatchesTotal      = "semantic_code_indexer.batches.total"

	attrOutcome = "outcome"
)

// IndexMetrics holds OTel instruments for indexer-run-specific metrics.
type IndexMetrics struct {
	filesIndexedTotal metric.Int64Counter
	chunksTotal       metric.Int64Counter
	chunkDuration     metric.Float64Histogram
	batchesTotal      metric.Int64Counter
}

// IndexStats holds the statistics for a single orchestrator run,
// decoupled from orchestrator/indexworker types.
type IndexStats struct {
	FilesIndexed     int64
	Chunks           int
	ChunkDurations   []time.Duration
	BatchesProcessed int64
	BatchesPartial   int64
	BatchesFailed    int64
}

// NewIndexMetrics creates indexer metric instruments from the given meter.
func NewIndexMetrics(mt metric.Meter) (*IndexMetrics, error) {
	files, err := mt.Int64Counter(metricFilesIndexedTotal,
		metric.WithDescription("Total files submitted for indexing"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesIndexedTotal, err)
	}

	chunks, err := mt.Int64Counter(metricChunksTotal,
		metric.WithDescription("Total chunks extracted"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunksTotal, err)
	}

	chunkDur, err := mt.Float64Histogram(metricChunkDuration,
		metric.WithDescription("Per-chunk extraction duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunkDuration, err)
	}

	batches, err := mt.Int64Counter(metricBatchesTotal,
		metric.WithDescription("Total bulk batches dispatched to the search backend, by outcome"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchesTotal, err)
	}

	return &IndexMetrics{
		filesIndexedTotal: files,
		chunksTotal:       chunks,
		chunkDuration:     chunkDur,
		batchesTotal:      batches,
	}, nil
}

// RecordRun records indexer statistics for a completed orchestrator run.
// Safe to call on a nil receiver (no-op).
func (im *IndexMetrics) RecordRun(ctx context.Context, stats IndexStats) {
	if im == nil {
		return
	}

	im.filesIndexedTotal.Add(ctx, stats.FilesIndexed)
	im.chunksTotal.Add(ctx, int64(stats.Chunks))

	for _, d := range stats.ChunkDurations {
		im.chunkDuration.Record(ctx, d.Seconds())
	}

	im.batchesTotal.Add(ctx, stats.BatchesProcessed, metric.WithAttributes(attribute.String(attrOutcome, "processed")))
	im.batchesTotal.Add(ctx, stats.BatchesPartial, metric.WithAttributes(attribute.String(attrOutcome, "partial")))
	im.batchesTotal.Add(ctx, stats.BatchesFailed, metric.WithAttributes(attribute.String(attrOutcome, "failed")))
}
