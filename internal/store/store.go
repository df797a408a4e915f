// Package store defines the persistence contract for OVC and provides
// SQLite, bbolt, and in-memory implementations. A store holds three
// logical tables — commits, branches, and per-collection document
// revisions — plus the id sequences and the advisory maintenance lock.
package store

import (
	"context"

	"github.com/kalvik/ovc/internal/models"
)

// Sequence names used with NextID.
const (
	SeqCommits   = "commits"
	SeqDocuments = "documents"
)

// MaxDeleteBatch is the largest id set a single DeleteCommits or
// DeleteDocuments call accepts. Callers deleting more must chunk.
const MaxDeleteBatch = 1000

// Store is the persistence contract. Implementations must be safe for
// concurrent use by independent callers.
type Store interface {
	// PutCommit stores an immutable commit. Delta iteration order
	// must survive a round trip through the store.
	PutCommit(ctx context.Context, c *models.Commit) error

	// GetCommit returns the commit with the given id, or
	// ErrUnknownCommit. The implicit root (id 0) is never stored.
	GetCommit(ctx context.Context, id uint64) (*models.Commit, error)

	// HasCommit reports whether a commit exists.
	HasCommit(ctx context.Context, id uint64) (bool, error)

	// CommitIDsBefore returns the ids of all commits whose timestamp
	// is older than maxTime (milliseconds since epoch). Commits
	// without a timestamp are always included.
	CommitIDsBefore(ctx context.Context, maxTime int64) ([]uint64, error)

	// ScanDeltas invokes fn for every delta entry of the given
	// collection across all stored commits, reachable or not.
	ScanDeltas(ctx context.Context, collection string, fn func(objectID, value uint64) error) error

	// CommitLog returns up to limit commits in descending id order;
	// limit <= 0 means all.
	CommitLog(ctx context.Context, limit int) ([]*models.Commit, error)

	// DeleteCommits removes the commits with the given ids in one
	// call. len(ids) must not exceed MaxDeleteBatch. Missing ids are
	// ignored.
	DeleteCommits(ctx context.Context, ids []uint64) error

	// GetBranch returns the branch with the given name, or
	// ErrUnknownBranch.
	GetBranch(ctx context.Context, name string) (*models.Branch, error)

	// ListBranches returns all branches sorted by name.
	ListBranches(ctx context.Context) ([]*models.Branch, error)

	// CreateBranch creates a branch pointing at head, or returns
	// ErrBranchExists.
	CreateBranch(ctx context.Context, name string, head uint64) error

	// SetBranchHead unconditionally repoints an existing branch.
	// The commit id is not validated.
	SetBranchHead(ctx context.Context, name string, head uint64) error

	// SwapBranchHead repoints the branch only if its head still
	// equals oldHead, returning ErrHeadMoved otherwise. This is the
	// lost-update guard for concurrent writers on one branch.
	SwapBranchHead(ctx context.Context, name string, oldHead, newHead uint64) error

	// DeleteBranch removes a branch, or returns ErrUnknownBranch.
	DeleteBranch(ctx context.Context, name string) error

	// PutDocument stores a document revision in a collection.
	PutDocument(ctx context.Context, collection string, doc *models.Document) error

	// GetDocument returns a document revision by id, or
	// ErrUnknownDocument.
	GetDocument(ctx context.Context, collection string, id uint64) (*models.Document, error)

	// DocumentIDsBefore returns the ids of all documents in the
	// collection older than maxTime, including documents without a
	// timestamp.
	DocumentIDsBefore(ctx context.Context, collection string, maxTime int64) ([]uint64, error)

	// DeleteDocuments removes up to MaxDeleteBatch documents from a
	// collection in one call. Missing ids are ignored.
	DeleteDocuments(ctx context.Context, collection string, ids []uint64) error

	// NextID returns the next value of a named sequence, starting at
	// 1. Values are strictly increasing and never reused.
	NextID(ctx context.Context, sequence string) (uint64, error)

	// Freeze takes the database-wide advisory maintenance lock,
	// returning ErrLockHeld if another holder has it. Best effort: a
	// commit already in flight is not blocked.
	Freeze(ctx context.Context) error

	// Unfreeze releases the maintenance lock.
	Unfreeze(ctx context.Context) error

	// Close releases the store.
	Close() error
}
