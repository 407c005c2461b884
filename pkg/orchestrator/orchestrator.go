// Package orchestrator implements the Pipeline Orchestrator (C7): it
// composes the Change Planner, Parser Pool, Durable Queue, Indexer
// Worker, Commit Anchor, and Search Backend Client into one per-
// repository run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kapral18/semantic-code-search-indexer/pkg/anchor"
	"github.com/kapral18/semantic-code-search-indexer/pkg/changeplanner"
	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
	"github.com/kapral18/semantic-code-search-indexer/pkg/indexpipeline"
	"github.com/kapral18/semantic-code-search-indexer/pkg/indexworker"
	"github.com/kapral18/semantic-code-search-indexer/pkg/parserpool"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
)

// RepoConfig resolves one repository's run parameters.
type RepoConfig struct {
	Name          string
	Branch        string
	Index         string
	SettingsIndex string
	Clean         bool
	Watch         bool
}

// Run is one repository's dependency set, composed by the caller
// (cmd/indexer) and handed to Orchestrate.
type Run struct {
	Config   RepoConfig
	Repo     gitrepo.Repo
	Queue    queue.Queue
	Backend  searchbackend.Client
	Registry *extractor.Registry
	Workers  int // parser pool size; <=0 uses parserpool's default
	Concurrency int // indexer concurrency; <=0 uses indexworker's default
	BatchSize   int
	Logger   *slog.Logger
}

func (r Run) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Summary is what one repository's run produced, for the CLI to report.
type Summary struct {
	Plan         changeplanner.Plan
	BatchMetrics indexworker.BatchMetrics
	AnchorBefore string
	AnchorAfter  string
}

// Orchestrate runs the full seven-step per-repository algorithm.
func Orchestrate(ctx context.Context, run Run) (Summary, error) {
	logger := run.logger()
	anchorStore := anchor.New(run.Backend, run.Config.SettingsIndex)

	if err := run.Backend.EnsureIndex(ctx, run.Config.Index); err != nil {
		return Summary{}, fmt.Errorf("%w: ensure index %s: %v", indexpipeline.ErrBackendUnavailable, run.Config.Index, err)
	}

	if err := run.Backend.EnsureSettingsIndex(ctx, run.Config.SettingsIndex); err != nil {
		return Summary{}, fmt.Errorf("%w: ensure settings index %s: %v", indexpipeline.ErrBackendUnavailable, run.Config.SettingsIndex, err)
	}

	anchorBefore, err := anchorStore.Get(ctx, run.Config.Branch)
	if err != nil {
		return Summary{}, err
	}

	planner := changeplanner.New(run.Repo, run.Registry)

	var plan changeplanner.Plan

	if run.Config.Clean {
		if err := run.Backend.DeleteIndex(ctx, run.Config.Index); err != nil {
			return Summary{}, fmt.Errorf("%w: delete index for clean run: %v", indexpipeline.ErrBackendUnavailable, err)
		}

		if err := run.Backend.EnsureIndex(ctx, run.Config.Index); err != nil {
			return Summary{}, fmt.Errorf("%w: recreate index after clean: %v", indexpipeline.ErrBackendUnavailable, err)
		}

		if err := run.Queue.Clear(ctx); err != nil {
			return Summary{}, fmt.Errorf("%w: clear queue for clean run: %v", indexpipeline.ErrStorage, err)
		}

		head, headErr := run.Repo.Head(ctx)
		if headErr != nil {
			return Summary{}, fmt.Errorf("resolve HEAD for full index: %w", headErr)
		}

		plan, err = planner.PlanFull(ctx, head)
	} else if anchorBefore == "" {
		head, headErr := run.Repo.Head(ctx)
		if headErr != nil {
			return Summary{}, fmt.Errorf("resolve HEAD for full index: %w", headErr)
		}

		plan, err = planner.PlanFull(ctx, head)
	} else {
		plan, err = planner.PlanIncremental(ctx, run.Config.Branch, anchorBefore)
	}

	if err != nil {
		return Summary{}, err
	}

	logger.InfoContext(ctx, "orchestrator: plan computed",
		"repo", run.Config.Name, "index_only", plan.Summary.IndexOnlyCount,
		"delete_only", plan.Summary.DeleteOnlyCount, "delete_and_index", plan.Summary.DeleteAndIndex)

	if err := dispatchDeletes(ctx, run, plan); err != nil {
		return Summary{}, err
	}

	if err := enqueueIndexable(ctx, run, plan); err != nil {
		return Summary{}, err
	}

	if err := run.Queue.MarkEnqueueCompleted(ctx); err != nil {
		return Summary{}, fmt.Errorf("%w: mark enqueue completed: %v", indexpipeline.ErrStorage, err)
	}

	worker := indexworker.New(run.Queue, run.Backend, indexworker.Config{
		Index:       run.Config.Index,
		Concurrency: run.Concurrency,
		BatchSize:   run.BatchSize,
		Watch:       run.Config.Watch,
		Logger:      logger,
	})

	batchMetrics, err := worker.Run(ctx)
	if err != nil {
		return Summary{Plan: plan, AnchorBefore: anchorBefore, AnchorAfter: anchorBefore}, err
	}

	stats, statsErr := run.Queue.Stats(ctx)
	if statsErr != nil {
		return Summary{Plan: plan, BatchMetrics: batchMetrics, AnchorBefore: anchorBefore, AnchorAfter: anchorBefore},
			fmt.Errorf("%w: read queue stats: %v", indexpipeline.ErrStorage, statsErr)
	}

	summary := Summary{Plan: plan, BatchMetrics: batchMetrics, AnchorBefore: anchorBefore, AnchorAfter: anchorBefore}

	if stats.Pending != 0 || stats.Processing != 0 {
		logger.WarnContext(ctx, "orchestrator: queue not fully drained, anchor not advanced",
			"repo", run.Config.Name, "pending", stats.Pending, "processing", stats.Processing)

		return summary, nil
	}

	newHead := plan.Summary.NewCommit
	if newHead == "" {
		newHead, err = run.Repo.Head(ctx)
		if err != nil {
			return summary, fmt.Errorf("resolve HEAD to advance anchor: %w", err)
		}
	}

	if err := anchorStore.Put(ctx, run.Config.Branch, newHead); err != nil {
		return summary, err
	}

	summary.AnchorAfter = newHead

	return summary, nil
}

func dispatchDeletes(ctx context.Context, run Run, plan changeplanner.Plan) error {
	for _, c := range plan.Changes {
		if c.Action != changeplanner.DeleteOnly {
			continue
		}

		if err := run.Backend.DeleteByFilePath(ctx, run.Config.Index, c.Path); err != nil {
			return fmt.Errorf("%w: delete-by-path %s: %v", indexpipeline.ErrBackendUnavailable, c.Path, err)
		}
	}

	return nil
}

func enqueueIndexable(ctx context.Context, run Run, plan changeplanner.Plan) error {
	var files []parserpool.File

	head := plan.Summary.NewCommit
	if head == "" {
		var err error

		head, err = run.Repo.Head(ctx)
		if err != nil {
			return fmt.Errorf("resolve HEAD for content reads: %w", err)
		}
	}

	for _, c := range plan.Changes {
		if c.Action != changeplanner.IndexOnly && c.Action != changeplanner.DeleteAndIndex {
			continue
		}

		content, err := run.Repo.ReadFile(ctx, head, c.Path)
		if err != nil {
			if errors.Is(err, indexpipeline.ErrStorage) {
				return err
			}

			continue // file vanished between diff and read; skip rather than fail the run.
		}

		files = append(files, parserpool.File{Path: c.Path, Branch: run.Config.Branch, Content: content})
	}

	pool := parserpool.New(run.Registry, run.Workers, 0)

	for result := range pool.Run(ctx, files) {
		if result.Err != nil {
			run.logger().ErrorContext(ctx, "orchestrator: extraction failed", "file", result.Path, "error", result.Err)

			continue
		}

		if len(result.Chunks) == 0 {
			continue
		}

		docs := make([][]byte, 0, len(result.Chunks))

		for _, c := range result.Chunks {
			data, encErr := indexworker.EncodeChunk(c)
			if encErr != nil {
				return fmt.Errorf("encode chunk for %s: %w", result.Path, encErr)
			}

			docs = append(docs, data)
		}

		if err := run.Queue.Enqueue(ctx, result.Path, docs); err != nil {
			return fmt.Errorf("%w: enqueue batch for %s: %v", indexpipeline.ErrStorage, result.Path, err)
		}
	}

	return nil
}
