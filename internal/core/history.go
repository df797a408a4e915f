package core

import (
	"context"

	"github.com/kalvik/ovc/internal/models"
)

// ParentOf returns the parent commit id of cid. The implicit root is
// its own parent. Returns store.ErrUnknownCommit for absent ids.
func (db *DB) ParentOf(ctx context.Context, cid uint64) (uint64, error) {
	if cid == models.RootCommitID {
		return models.RootCommitID, nil
	}
	c, err := db.store.GetCommit(ctx, cid)
	if err != nil {
		return 0, err
	}
	return c.Parent, nil
}

// HasCommit reports whether cid exists in history. The implicit root
// always exists.
func (db *DB) HasCommit(ctx context.Context, cid uint64) (bool, error) {
	if cid == models.RootCommitID {
		return true, nil
	}
	return db.store.HasCommit(ctx, cid)
}

// AncestorWalker walks a commit's ancestor chain toward the root with
// an explicit loop. Histories run to thousands of commits, so the
// walk must never recurse. Usage follows bufio.Scanner:
//
//	w := db.Ancestors(head)
//	for w.Next(ctx) {
//		c := w.Commit()
//		...
//	}
//	if err := w.Err(); err != nil { ... }
//
// The walk yields the starting commit first, then each parent, and
// stops before the implicit root.
type AncestorWalker struct {
	db   *DB
	next uint64
	cur  *models.Commit
	err  error
}

// Ancestors starts an ancestor walk at cid.
func (db *DB) Ancestors(cid uint64) *AncestorWalker {
	return &AncestorWalker{db: db, next: cid}
}

// Next advances to the next ancestor. It returns false at the root or
// on error; check Err afterwards.
func (w *AncestorWalker) Next(ctx context.Context) bool {
	if w.err != nil || w.next == models.RootCommitID {
		return false
	}
	c, err := w.db.store.GetCommit(ctx, w.next)
	if err != nil {
		w.err = err
		return false
	}
	w.cur = c
	w.next = c.Parent
	return true
}

// Commit returns the commit the walker is positioned on.
func (w *AncestorWalker) Commit() *models.Commit {
	return w.cur
}

// CommitID returns the id of the commit the walker is positioned on.
func (w *AncestorWalker) CommitID() uint64 {
	return w.cur.ID
}

// Err returns the first error encountered during the walk.
func (w *AncestorWalker) Err() error {
	return w.err
}
