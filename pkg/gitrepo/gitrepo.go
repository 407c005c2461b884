// Package gitrepo is the narrow Git transport collaborator the Change
// Planner (C4) consumes: rev-parse, pull, name-status diff, and blob
// hashing, without exposing the rest of libgit2's surface.
package gitrepo

import "context"

// Status is a single name-status diff entry between two commits,
// mirroring `git diff --name-status` letter codes.
type Status byte

const (
	StatusAdded    Status = 'A'
	StatusModified Status = 'M'
	StatusDeleted  Status = 'D'
	StatusRenamed  Status = 'R'
	StatusCopied   Status = 'C'
)

// DiffEntry is one row of a name-status diff. OldPath is empty when Status
// is Added; NewPath is empty when Status is Deleted.
type DiffEntry struct {
	Status  Status
	OldPath string
	NewPath string
}

// Repo is the Git collaborator interface C4 depends on. Implementations
// operate on a single already-cloned working tree.
type Repo interface {
	// Head returns the commit hash HEAD currently points at.
	Head(ctx context.Context) (string, error)

	// Pull fetches and fast-forwards the named branch, returning the
	// resulting HEAD hash.
	Pull(ctx context.Context, branch string) (string, error)

	// DiffNameStatus computes the name-status diff between two commits.
	DiffNameStatus(ctx context.Context, oldHash, newHash string) ([]DiffEntry, error)

	// ListFiles lists every regular file tracked at the given commit,
	// relative to the repository root.
	ListFiles(ctx context.Context, hash string) ([]string, error)

	// ReadFile returns the content of path as it exists at hash.
	ReadFile(ctx context.Context, hash, path string) ([]byte, error)

	// HashObject computes the content-address of path's current working
	// tree contents the same way the host VCS hashes a blob.
	HashObject(ctx context.Context, path string) (string, error)

	// Root returns the repository's working-tree root path.
	Root() string
}
