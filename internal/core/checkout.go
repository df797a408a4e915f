package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/kalvik/ovc/internal/models"
	"github.com/kalvik/ovc/internal/store"
)

// ResolveRef resolves a ref to a commit id. A ref is tried as a
// branch name first, then as a decimal commit id. Commit ids are
// validated against history; branch heads are trusted.
func (db *DB) ResolveRef(ctx context.Context, ref string) (uint64, error) {
	b, err := db.store.GetBranch(ctx, ref)
	if err == nil {
		return b.Head, nil
	}
	if !errors.Is(err, store.ErrUnknownBranch) {
		return 0, err
	}

	cid, perr := strconv.ParseUint(ref, 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("'%s' is not a valid branch or commit: %w", ref, store.ErrUnknownBranch)
	}
	ok, err := db.HasCommit(ctx, cid)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("commit %d: %w", cid, store.ErrUnknownCommit)
	}
	return cid, nil
}

// Checkout resolves a ref and pins a snapshot at the resulting commit
// id. The snapshot is immune to commits created afterwards on any
// branch.
func (db *DB) Checkout(ctx context.Context, ref string) (*Snapshot, error) {
	cid, err := db.ResolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return db.CheckoutCommit(cid), nil
}

// CheckoutCommit pins a snapshot directly at a commit id without
// validating it; resolution against a missing commit surfaces
// store.ErrUnknownCommit on first use.
func (db *DB) CheckoutCommit(cid uint64) *Snapshot {
	return &Snapshot{db: db, commitID: cid}
}

// Snapshot is a fixed commit id used as the resolution root for a
// sequence of reads. Repeated lookups are idempotent and mutually
// consistent even while the database accepts new commits, so resolved
// entries are memoized; commits are immutable, which makes the memo
// safe. A Snapshot is safe for concurrent use.
type Snapshot struct {
	db       *DB
	commitID uint64

	mu   sync.Mutex
	memo map[string]map[uint64]memoEntry
}

type memoEntry struct {
	value uint64
	found bool
}

// CommitID returns the commit id this snapshot is pinned to.
func (s *Snapshot) CommitID() uint64 {
	return s.commitID
}

// Get resolves the revision of an object visible at this snapshot.
// The boolean is false when the object did not exist as of this
// commit.
func (s *Snapshot) Get(ctx context.Context, collection string, objectID uint64) (uint64, bool, error) {
	s.mu.Lock()
	if e, ok := s.memo[collection][objectID]; ok {
		s.mu.Unlock()
		return e.value, e.found, nil
	}
	s.mu.Unlock()

	value, found, err := s.db.Resolve(ctx, s.commitID, collection, objectID)
	if err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	if s.memo == nil {
		s.memo = make(map[string]map[uint64]memoEntry)
	}
	if s.memo[collection] == nil {
		s.memo[collection] = make(map[uint64]memoEntry)
	}
	s.memo[collection][objectID] = memoEntry{value: value, found: found}
	s.mu.Unlock()

	return value, found, nil
}

// GetDocument resolves an object at this snapshot and loads the
// visible document revision. Returns store.ErrUnknownDocument when
// the object is not visible here.
func (s *Snapshot) GetDocument(ctx context.Context, collection string, objectID uint64) (*models.Document, error) {
	value, found, err := s.Get(ctx, collection, objectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("object %d not visible at commit %d: %w",
			objectID, s.commitID, store.ErrUnknownDocument)
	}
	return s.db.store.GetDocument(ctx, collection, value)
}
