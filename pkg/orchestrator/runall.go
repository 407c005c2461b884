package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

// RepoResult pairs one repository's Run with its outcome.
type RepoResult struct {
	Name    string
	Summary Summary
	Err     error
}

// RunAll drives multiple repositories' runs, never sharing a queue
// between them. When parallel is true, repositories run concurrently;
// otherwise they run sequentially in the order given. Each repository's
// queue is single-writer per the design's single-owner-queue
// assumption, so concurrent runs across different repositories is
// always safe.
func RunAll(ctx context.Context, runs []Run, parallel bool) []RepoResult {
	if !parallel {
		results := make([]RepoResult, 0, len(runs))

		for _, run := range runs {
			summary, err := Orchestrate(ctx, run)
			results = append(results, RepoResult{Name: run.Config.Name, Summary: summary, Err: wrapRepoErr(run.Config.Name, err)})
		}

		return results
	}

	results := make([]RepoResult, len(runs))

	var wg sync.WaitGroup

	wg.Add(len(runs))

	for i, run := range runs {
		go func(i int, run Run) {
			defer wg.Done()

			summary, err := Orchestrate(ctx, run)
			results[i] = RepoResult{Name: run.Config.Name, Summary: summary, Err: wrapRepoErr(run.Config.Name, err)}
		}(i, run)
	}

	wg.Wait()

	return results
}

func wrapRepoErr(name string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("repository %s: %w", name, err)
}
