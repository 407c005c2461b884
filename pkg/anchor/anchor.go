// Package anchor implements the Commit Anchor (C6): the most recent
// commit whose chunks have been fully drained, stored alongside the
// index in the search backend's settings index so a fresh machine can
// resume.
package anchor

import (
	"context"
	"fmt"

	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
)

// Store reads and writes the commit anchor for a branch, backed by the
// search backend's settings index.
type Store struct {
	client        searchbackend.Client
	settingsIndex string
}

// New builds a Store over the given settings index.
func New(client searchbackend.Client, settingsIndex string) *Store {
	return &Store{client: client, settingsIndex: settingsIndex}
}

// Get returns the last recorded commit hash for branch, or "" if none
// has ever been recorded.
func (s *Store) Get(ctx context.Context, branch string) (string, error) {
	hash, err := s.client.GetAnchor(ctx, s.settingsIndex, branch)
	if err != nil {
		return "", fmt.Errorf("get anchor for %s: %w", branch, err)
	}

	return hash, nil
}

// Put records hash as the most recently fully-drained commit for
// branch. Callers must only call this after the indexer worker reports
// a clean, complete drain — never before, and never when the queue
// still holds pending work.
func (s *Store) Put(ctx context.Context, branch, hash string) error {
	if err := s.client.PutAnchor(ctx, s.settingsIndex, branch, hash); err != nil {
		return fmt.Errorf("put anchor for %s: %w", branch, err)
	}

	return nil
}
