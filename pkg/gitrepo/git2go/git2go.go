// Package git2go adapts pkg/gitlib's libgit2 wrapper into the narrow
// gitrepo.Repo collaborator interface the Change Planner depends on.
package git2go

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	nativegit2go "github.com/libgit2/git2go/v34"

	"github.com/kapral18/semantic-code-search-indexer/pkg/gitlib"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
)

// Repo is a gitrepo.Repo backed by an on-disk libgit2 working tree,
// reusing pkg/gitlib's Repository/Tree/Hash wrappers for everything
// except remote fetch, which gitlib has no need for.
type Repo struct {
	repo *gitlib.Repository
	root string
}

// Open opens the repository rooted at path.
func Open(path string) (*Repo, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}

	return &Repo{repo: repo, root: path}, nil
}

// Close releases the underlying libgit2 handles.
func (r *Repo) Close() {
	r.repo.Free()
}

// Root implements gitrepo.Repo.
func (r *Repo) Root() string {
	return r.root
}

// Head implements gitrepo.Repo.
func (r *Repo) Head(_ context.Context) (string, error) {
	hash, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	return hash.String(), nil
}

// Pull implements gitrepo.Repo: fetches origin and fast-forwards branch
// to the fetched remote-tracking ref, then checks out the working tree.
func (r *Repo) Pull(_ context.Context, branch string) (string, error) {
	native := r.repo.Native()

	remote, err := native.Remotes.Lookup("origin")
	if err != nil {
		return "", fmt.Errorf("lookup remote origin: %w", err)
	}
	defer remote.Free()

	refspec := fmt.Sprintf("refs/heads/%s:refs/remotes/origin/%s", branch, branch)
	if err := remote.Fetch([]string{refspec}, nil, "pull"); err != nil {
		return "", fmt.Errorf("fetch origin: %w", err)
	}

	remoteRef, err := native.References.Lookup("refs/remotes/origin/" + branch)
	if err != nil {
		return "", fmt.Errorf("lookup fetched ref refs/remotes/origin/%s: %w", branch, err)
	}
	defer remoteRef.Free()

	target := remoteRef.Target()

	localRefName := "refs/heads/" + branch
	if localRef, lookupErr := native.References.Lookup(localRefName); lookupErr == nil {
		defer localRef.Free()

		if _, setErr := localRef.SetTarget(target, "fast-forward: "+branch); setErr != nil {
			return "", fmt.Errorf("fast-forward %s: %w", localRefName, setErr)
		}
	} else {
		if _, createErr := native.References.Create(localRefName, target, false, "pull: "+branch); createErr != nil {
			return "", fmt.Errorf("create local ref %s: %w", localRefName, createErr)
		}
	}

	if err := native.SetHead(localRefName); err != nil {
		return "", fmt.Errorf("set HEAD to %s: %w", localRefName, err)
	}

	checkoutOpts := &nativegit2go.CheckoutOptions{Strategy: nativegit2go.CheckoutForce}
	if err := native.CheckoutHead(checkoutOpts); err != nil {
		return "", fmt.Errorf("checkout HEAD: %w", err)
	}

	return gitlib.HashFromOid(target).String(), nil
}

// DiffNameStatus implements gitrepo.Repo, translating gitlib.DiffDelta
// statuses into the distinct status codes the Change Planner's mapping
// table needs.
func (r *Repo) DiffNameStatus(_ context.Context, oldHash, newHash string) ([]gitrepo.DiffEntry, error) {
	oldTree, err := r.lookupTreeForCommit(oldHash)
	if err != nil {
		return nil, err
	}

	if oldTree != nil {
		defer oldTree.Free()
	}

	newTree, err := r.lookupTreeForCommit(newHash)
	if err != nil {
		return nil, err
	}

	if newTree != nil {
		defer newTree.Free()
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", oldHash, newHash, err)
	}
	defer diff.Free()

	if err := enableRenameAndCopyDetection(diff); err != nil {
		return nil, fmt.Errorf("enable rename/copy detection: %w", err)
	}

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("count deltas: %w", err)
	}

	entries := make([]gitrepo.DiffEntry, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		entry, ok := deltaToEntry(delta)
		if !ok {
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func deltaToEntry(delta gitlib.DiffDelta) (gitrepo.DiffEntry, bool) {
	switch delta.Status {
	case nativegit2go.DeltaAdded:
		return gitrepo.DiffEntry{Status: gitrepo.StatusAdded, NewPath: delta.NewFile.Path}, true
	case nativegit2go.DeltaDeleted:
		return gitrepo.DiffEntry{Status: gitrepo.StatusDeleted, OldPath: delta.OldFile.Path}, true
	case nativegit2go.DeltaModified, nativegit2go.DeltaTypeChange:
		return gitrepo.DiffEntry{Status: gitrepo.StatusModified, OldPath: delta.OldFile.Path, NewPath: delta.NewFile.Path}, true
	case nativegit2go.DeltaRenamed:
		return gitrepo.DiffEntry{Status: gitrepo.StatusRenamed, OldPath: delta.OldFile.Path, NewPath: delta.NewFile.Path}, true
	case nativegit2go.DeltaCopied:
		return gitrepo.DiffEntry{Status: gitrepo.StatusCopied, OldPath: delta.OldFile.Path, NewPath: delta.NewFile.Path}, true
	case nativegit2go.DeltaUnmodified, nativegit2go.DeltaIgnored, nativegit2go.DeltaUntracked,
		nativegit2go.DeltaUnreadable, nativegit2go.DeltaConflicted:
		return gitrepo.DiffEntry{}, false
	default:
		return gitrepo.DiffEntry{}, false
	}
}

func (r *Repo) lookupTreeForCommit(hash string) (*gitlib.Tree, error) {
	if hash == "" {
		return nil, nil
	}

	commit, err := r.repo.LookupCommit(context.Background(), gitlib.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("resolve tree for commit %s: %w", hash, err)
	}

	return tree, nil
}

// ListFiles implements gitrepo.Repo.
func (r *Repo) ListFiles(_ context.Context, hash string) ([]string, error) {
	tree, err := r.lookupTreeForCommit(hash)
	if err != nil {
		return nil, err
	}

	if tree == nil {
		return nil, nil
	}
	defer tree.Free()

	files, err := gitlib.TreeFiles(r.repo, tree)
	if err != nil {
		return nil, fmt.Errorf("enumerate tree files at %s: %w", hash, err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Name)
	}

	return paths, nil
}

// ReadFile implements gitrepo.Repo.
func (r *Repo) ReadFile(_ context.Context, hash, path string) ([]byte, error) {
	tree, err := r.lookupTreeForCommit(hash)
	if err != nil {
		return nil, err
	}

	if tree == nil {
		return nil, fmt.Errorf("read %s at %s: empty tree", path, hash)
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("lookup tree entry %s: %w", path, err)
	}

	blob, err := r.repo.LookupBlob(context.Background(), entry.Hash())
	if err != nil {
		return nil, fmt.Errorf("lookup blob for %s: %w", path, err)
	}
	defer blob.Free()

	data, err := io.ReadAll(blob.Reader())
	if err != nil {
		return nil, fmt.Errorf("read blob for %s: %w", path, err)
	}

	return data, nil
}

// HashObject implements gitrepo.Repo by hashing the working tree file's
// current contents through the repository's object database, rather
// than shelling out to `git hash-object`, since the Git collaborator is
// already in-process via libgit2.
func (r *Repo) HashObject(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, path))
	if err != nil {
		return "", fmt.Errorf("read working tree file %s: %w", path, err)
	}

	odb, err := r.repo.Native().Odb()
	if err != nil {
		return "", fmt.Errorf("open object database: %w", err)
	}
	defer odb.Free()

	oid, err := odb.Hash(data, nativegit2go.ObjectBlob)
	if err != nil {
		return "", fmt.Errorf("hash blob for %s: %w", path, err)
	}

	return gitlib.HashFromOid(oid).String(), nil
}

func enableRenameAndCopyDetection(diff *gitlib.Diff) error {
	opts, err := nativegit2go.DefaultDiffFindOptions()
	if err != nil {
		return fmt.Errorf("default find options: %w", err)
	}

	opts.Flags = nativegit2go.DiffFindRenames | nativegit2go.DiffFindCopies

	if err := diff.Native().FindSimilar(&opts); err != nil {
		return fmt.Errorf("find similar: %w", err)
	}

	return nil
}
