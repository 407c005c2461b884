// Package changeplanner implements the Change Planner (C4): it computes
// the minimal set of per-file actions between two commits on a branch,
// or the full set of files for a clean index.
package changeplanner

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
	"github.com/kapral18/semantic-code-search-indexer/pkg/indexpipeline"
)

// Action is the per-file intent produced by the planner.
type Action int

const (
	// DeleteOnly removes a path from the index; it is unconditional —
	// extension support is never checked for deletions.
	DeleteOnly Action = iota
	// IndexOnly (re)indexes a path; extension support must already
	// have been checked before this action is produced.
	IndexOnly
	// DeleteAndIndex removes then (re)indexes a path — the mapping for
	// in-place modifications.
	DeleteAndIndex
)

// String renders the action for logging.
func (a Action) String() string {
	switch a {
	case DeleteOnly:
		return "delete-only"
	case IndexOnly:
		return "index-only"
	case DeleteAndIndex:
		return "delete-and-index"
	default:
		return "unknown"
	}
}

// Change is one planned per-file action.
type Change struct {
	Action Action
	Path   string
}

// Summary is the run summary emitted alongside the plan: counts by
// classification, and the commit range the plan covers.
type Summary struct {
	OldCommit        string
	NewCommit        string
	IndexOnlyCount   int
	DeleteOnlyCount  int
	DeleteAndIndex   int
}

// Plan is the planner's output: the ordered list of changes plus the
// run summary. DeleteOnly changes are listed first so callers can
// dispatch deletes before indexing begins, per the design's ordering
// requirement.
type Plan struct {
	Changes []Change
	Summary Summary
}

// Planner computes full or incremental plans for one repository.
type Planner struct {
	repo     gitrepo.Repo
	registry *extractor.Registry
}

// New builds a Planner over repo, using registry to decide which file
// extensions are eligible to index.
func New(repo gitrepo.Repo, registry *extractor.Registry) *Planner {
	return &Planner{repo: repo, registry: registry}
}

// PlanFull enumerates every file at hash under the Git root, filtered by
// .gitignore and an optional .indexerignore, and emits IndexOnly for
// every eligible file.
func (p *Planner) PlanFull(ctx context.Context, hash string) (Plan, error) {
	paths, err := p.repo.ListFiles(ctx, hash)
	if err != nil {
		return Plan{}, fmt.Errorf("list files at %s: %w", hash, err)
	}

	matcher, err := p.loadIgnoreMatcher(ctx, hash)
	if err != nil {
		return Plan{}, err
	}

	sort.Strings(paths)

	plan := Plan{Summary: Summary{OldCommit: "", NewCommit: hash}}

	for _, p2 := range paths {
		if matcher.Match(p2) {
			continue
		}

		if !p.registry.Supports(p2) {
			continue
		}

		plan.Changes = append(plan.Changes, Change{Action: IndexOnly, Path: p2})
		plan.Summary.IndexOnlyCount++
	}

	return plan, nil
}

// PlanIncremental pulls branch, then diffs the anchor commit against the
// resulting HEAD, mapping Git status codes to actions per the planner's
// status table. anchor == "" is rejected: incremental mode refuses to
// run without a prior commit anchor.
func (p *Planner) PlanIncremental(ctx context.Context, branch, anchor string) (Plan, error) {
	if anchor == "" {
		return Plan{}, indexpipeline.ErrAnchorMissing
	}

	newHash, err := p.repo.Pull(ctx, branch)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %v", indexpipeline.ErrPullFailed, err)
	}

	entries, err := p.repo.DiffNameStatus(ctx, anchor, newHash)
	if err != nil {
		return Plan{}, fmt.Errorf("diff %s..%s: %w", anchor, newHash, err)
	}

	plan := Plan{Summary: Summary{OldCommit: anchor, NewCommit: newHash}}

	var deletes, indexes []Change

	for _, e := range entries {
		for _, c := range p.mapEntry(e) {
			switch c.Action {
			case DeleteOnly:
				deletes = append(deletes, c)
				plan.Summary.DeleteOnlyCount++
			case IndexOnly:
				indexes = append(indexes, c)
				plan.Summary.IndexOnlyCount++
			case DeleteAndIndex:
				indexes = append(indexes, c)
				plan.Summary.DeleteAndIndex++
			}
		}
	}

	plan.Changes = append(plan.Changes, deletes...)
	plan.Changes = append(plan.Changes, indexes...)

	return plan, nil
}

// mapEntry implements the Git status → ChangeAction mapping table.
func (p *Planner) mapEntry(e gitrepo.DiffEntry) []Change {
	switch e.Status {
	case gitrepo.StatusAdded:
		if p.registry.Supports(e.NewPath) {
			return []Change{{Action: IndexOnly, Path: e.NewPath}}
		}

		return nil
	case gitrepo.StatusModified:
		if p.registry.Supports(e.NewPath) {
			return []Change{{Action: DeleteAndIndex, Path: e.NewPath}}
		}

		return nil
	case gitrepo.StatusDeleted:
		return []Change{{Action: DeleteOnly, Path: e.OldPath}}
	case gitrepo.StatusRenamed:
		changes := []Change{{Action: DeleteOnly, Path: e.OldPath}}
		if p.registry.Supports(e.NewPath) {
			changes = append(changes, Change{Action: IndexOnly, Path: e.NewPath})
		}

		return changes
	case gitrepo.StatusCopied:
		if p.registry.Supports(e.NewPath) {
			return []Change{{Action: IndexOnly, Path: e.NewPath}}
		}

		return nil
	default:
		return nil
	}
}

func (p *Planner) loadIgnoreMatcher(ctx context.Context, hash string) (*ignoreMatcher, error) {
	matcher := newIgnoreMatcher()

	for _, name := range []string{".gitignore", ".indexerignore"} {
		content, err := p.repo.ReadFile(ctx, hash, name)
		if err != nil {
			continue // absent ignore file is not an error.
		}

		matcher.loadFile(bytes.NewReader(content))
	}

	return matcher, nil
}
