package core

import (
	"context"
	"fmt"

	"github.com/kalvik/ovc/internal/models"
	"github.com/kalvik/ovc/internal/store"
)

// Change records that an object's current revision became value in
// this commit. Value is the id of the document revision (0 is legal
// and conventionally marks a deletion).
type Change struct {
	Collection string
	ObjectID   uint64
	Value      uint64
}

// Commit creates a new commit on the named branch containing the
// given changes and atomically advances the branch head. Changes are
// recorded in order; a later change to the same object id overwrites
// the earlier one within this commit.
//
// The head update is a compare-and-swap against the head observed
// when the commit was built: if another writer advanced the branch in
// the meantime, Commit fails with store.ErrHeadMoved and the already
// stored commit is left behind as dangling, to be reclaimed by
// maintenance.
func (db *DB) Commit(ctx context.Context, branch string, changes []Change) (*models.Commit, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("no changes to commit")
	}

	b, err := db.store.GetBranch(ctx, branch)
	if err != nil {
		return nil, err
	}

	id, err := db.store.NextID(ctx, store.SeqCommits)
	if err != nil {
		return nil, err
	}

	c := models.NewCommit(id, b.Head)
	for _, ch := range changes {
		c.Delta(ch.Collection).Put(ch.ObjectID, ch.Value)
	}

	if err := db.store.PutCommit(ctx, c); err != nil {
		return nil, err
	}

	if err := db.store.SwapBranchHead(ctx, branch, b.Head, id); err != nil {
		return nil, fmt.Errorf("advance %s to commit %d: %w", branch, id, err)
	}

	return c, nil
}

// Put stores a document revision and returns the Change that makes it
// the object's current revision when committed.
func (db *DB) Put(ctx context.Context, collection string, objectID uint64, data []byte) (Change, error) {
	id, err := db.NewDocumentID(ctx)
	if err != nil {
		return Change{}, err
	}
	doc := models.NewDocument(id, data)
	if err := db.store.PutDocument(ctx, collection, doc); err != nil {
		return Change{}, err
	}
	return Change{Collection: collection, ObjectID: objectID, Value: id}, nil
}
