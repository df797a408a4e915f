package core

import (
	"context"
	"fmt"

	"github.com/kalvik/ovc/internal/models"
)

// ListBranches returns all branches sorted by name.
func (db *DB) ListBranches(ctx context.Context) ([]*models.Branch, error) {
	return db.store.ListBranches(ctx)
}

// Head returns the head commit id of the named branch.
func (db *DB) Head(ctx context.Context, branch string) (uint64, error) {
	b, err := db.store.GetBranch(ctx, branch)
	if err != nil {
		return 0, err
	}
	return b.Head, nil
}

// CreateBranch creates a new branch. An empty startPoint starts the
// branch at the implicit root; otherwise startPoint is resolved as a
// branch name or commit id and the new branch shares that history.
func (db *DB) CreateBranch(ctx context.Context, name, startPoint string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	head := models.RootCommitID
	if startPoint != "" {
		cid, err := db.ResolveRef(ctx, startPoint)
		if err != nil {
			return err
		}
		head = cid
	}

	return db.store.CreateBranch(ctx, name, head)
}

// DeleteBranch removes a branch. Commits only reachable from its head
// become dangling and are reclaimed by maintenance.
func (db *DB) DeleteBranch(ctx context.Context, name string) error {
	return db.store.DeleteBranch(ctx, name)
}
