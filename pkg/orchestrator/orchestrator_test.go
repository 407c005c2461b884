package orchestrator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
	"github.com/kapral18/semantic-code-search-indexer/pkg/orchestrator"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue/memqueue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	head       string
	files      map[string][]string
	fileBytes  map[string][]byte
	diffs      map[string][]gitrepo.DiffEntry
	pullResult string
}

func (f *fakeRepo) Head(context.Context) (string, error) { return f.head, nil }
func (f *fakeRepo) Pull(context.Context, string) (string, error) {
	return f.pullResult, nil
}

func (f *fakeRepo) DiffNameStatus(_ context.Context, oldHash, newHash string) ([]gitrepo.DiffEntry, error) {
	return f.diffs[oldHash+".."+newHash], nil
}

func (f *fakeRepo) ListFiles(_ context.Context, hash string) ([]string, error) {
	return f.files[hash], nil
}

func (f *fakeRepo) ReadFile(_ context.Context, hash, path string) ([]byte, error) {
	return f.fileBytes[hash+":"+path], nil
}

func (f *fakeRepo) HashObject(context.Context, string) (string, error) { return "", nil }
func (f *fakeRepo) Root() string                                       { return "/repo" }

type fakeBackend struct {
	mu      sync.Mutex
	anchors map[string]string
	deletes []string
}

func newFakeBackend() *fakeBackend { return &fakeBackend{anchors: map[string]string{}} }

func (f *fakeBackend) EnsureIndex(context.Context, string) error         { return nil }
func (f *fakeBackend) EnsureSettingsIndex(context.Context, string) error { return nil }
func (f *fakeBackend) DeleteIndex(context.Context, string) error         { return nil }

func (f *fakeBackend) DeleteByFilePath(_ context.Context, _, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path)

	return nil
}

func (f *fakeBackend) BulkIndex(_ context.Context, _ string, chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
	return searchbackend.BulkResult{Succeeded: chunks}, nil
}

func (f *fakeBackend) GetAnchor(_ context.Context, _, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.anchors[branch], nil
}

func (f *fakeBackend) PutAnchor(_ context.Context, _, branch, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anchors[branch] = hash

	return nil
}

func TestOrchestrateEmptyDiffLeavesAnchorUnchanged(t *testing.T) {
	repo := &fakeRepo{
		head:       "h0",
		pullResult: "h0",
		diffs:      map[string][]gitrepo.DiffEntry{"h0..h0": {}},
	}
	backend := newFakeBackend()
	backend.anchors["main"] = "h0"

	q := memqueue.New(nil)
	registry := extractor.NewRegistry(nil)

	run := orchestrator.Run{
		Config:   orchestrator.RepoConfig{Name: "repo1", Branch: "main", Index: "code", SettingsIndex: "settings"},
		Repo:     repo,
		Queue:    q,
		Backend:  backend,
		Registry: registry,
	}

	summary, err := orchestrator.Orchestrate(t.Context(), run)
	require.NoError(t, err)
	assert.Equal(t, "h0", summary.AnchorAfter)
	assert.Empty(t, summary.Plan.Changes)
	assert.Empty(t, backend.deletes)
}

func TestOrchestrateCleanFullIndexAdvancesAnchor(t *testing.T) {
	repo := &fakeRepo{
		head: "h0",
		files: map[string][]string{
			"h0": {"a.md"},
		},
		fileBytes: map[string][]byte{
			"h0:a.md": []byte("hello world\n"),
		},
	}
	backend := newFakeBackend()

	q := memqueue.New(nil)
	registry := extractor.NewRegistry(nil)

	run := orchestrator.Run{
		Config:   orchestrator.RepoConfig{Name: "repo1", Branch: "main", Index: "code", SettingsIndex: "settings", Clean: true},
		Repo:     repo,
		Queue:    q,
		Backend:  backend,
		Registry: registry,
	}

	summary, err := orchestrator.Orchestrate(t.Context(), run)
	require.NoError(t, err)
	assert.Equal(t, "h0", summary.AnchorAfter)
	assert.Equal(t, 1, summary.BatchMetrics.ChunksIndexed)
}

func TestRunAllSequentialProcessesEveryRepo(t *testing.T) {
	makeRun := func(name string) orchestrator.Run {
		repo := &fakeRepo{head: "h0", pullResult: "h0", diffs: map[string][]gitrepo.DiffEntry{"h0..h0": {}}}
		backend := newFakeBackend()
		backend.anchors["main"] = "h0"

		return orchestrator.Run{
			Config:   orchestrator.RepoConfig{Name: name, Branch: "main", Index: "code", SettingsIndex: "settings"},
			Repo:     repo,
			Queue:    memqueue.New(nil),
			Backend:  backend,
			Registry: extractor.NewRegistry(nil),
		}
	}

	results := orchestrator.RunAll(t.Context(), []orchestrator.Run{makeRun("a"), makeRun("b")}, false)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}
