// Package parserpool implements the Parser Pool (C3): a bounded concurrent
// pool that runs the Language Extractor per file and streams results back
// in arrival order, not input order, per its design.
package parserpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
)

// File is one unit of work submitted to the pool.
type File struct {
	Path      string
	Branch    string
	Content   []byte
}

// Result is either a success (chunks + metrics) or a failure (path, reason,
// metrics), per the C3 result contract.
type Result struct {
	Err      error
	Path     string
	Chunks   []chunk.Chunk
	Metrics  extractor.Metrics
}

// Pool runs Extract invocations concurrently on a fixed worker count,
// mirroring framework.leafWorker's channel + WaitGroup + per-worker error
// handling shape, generalized from "one worker per leaf analyzer" to "one
// worker per CPU core processing one file at a time".
type Pool struct {
	registry *extractor.Registry

	workers           int
	maxChunkSizeBytes int
}

// New builds a Pool with workers goroutines (defaulting to half the
// logical CPU count, minimum 1, when workers <= 0).
func New(registry *extractor.Registry, workers, maxChunkSizeBytes int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() / 2
		if workers < 1 {
			workers = 1
		}
	}

	return &Pool{registry: registry, workers: workers, maxChunkSizeBytes: maxChunkSizeBytes}
}

// Run submits files to the pool and streams results on the returned
// channel as they complete. It returns at once; the channel is closed after
// every worker has finished. Once ctx is cancelled no further files are
// handed to workers, while files already taken still finish and send their
// results before the channel closes.
func (p *Pool) Run(ctx context.Context, files []File) <-chan Result {
	const resultChanBuffer = 16

	work := make(chan File)
	results := make(chan Result, resultChanBuffer)

	var wg sync.WaitGroup

	wg.Add(p.workers)

	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()

			for f := range work {
				results <- p.extractOne(ctx, f)
			}
		}()
	}

	go func() {
		defer close(work)

		for _, f := range files {
			select {
			case work <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) extractOne(ctx context.Context, f File) Result {
	chunks, metrics, err := p.registry.Extract(ctx, f.Path, f.Branch, f.Content, p.maxChunkSizeBytes)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedExtension) {
			return Result{Path: f.Path, Metrics: metrics}
		}

		return Result{Path: f.Path, Err: err, Metrics: metrics}
	}

	return Result{Path: f.Path, Chunks: chunks, Metrics: metrics}
}
