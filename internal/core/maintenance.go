package core

import (
	"context"
	"time"

	"github.com/kalvik/ovc/internal/index"
	"github.com/kalvik/ovc/internal/models"
	"github.com/kalvik/ovc/internal/store"
)

// Maintenance exposes the garbage collection operations. Each scan
// takes the database-wide advisory freeze lock for its duration. The
// lock does not stop a commit already in flight, so detection is a
// safe approximation: a misclassified commit is simply found again on
// the next run, and deletion targets were proven unreachable at scan
// time, which no later commit can undo.
type Maintenance struct {
	db *DB
}

// Maintenance returns the maintenance interface of the database.
func (db *DB) Maintenance() *Maintenance {
	return &Maintenance{db: db}
}

// FindDanglingCommits returns the ids of commits that are older than
// expiry and unreachable from every branch head. Commits without a
// timestamp count as old.
func (m *Maintenance) FindDanglingCommits(ctx context.Context, expiry time.Duration) ([]uint64, error) {
	if err := m.db.store.Freeze(ctx); err != nil {
		return nil, err
	}
	defer m.db.store.Unfreeze(ctx)
	return m.findDanglingCommits(ctx, expiry)
}

func (m *Maintenance) findDanglingCommits(ctx context.Context, expiry time.Duration) ([]uint64, error) {
	maxTime := maxTimeFor(expiry)

	// Every commit older than the expiry starts out presumed dangling
	expired, err := m.db.store.CommitIDsBefore(ctx, maxTime)
	if err != nil {
		return nil, err
	}
	dangling := index.NewWithCapacity(len(expired))
	for _, cid := range expired {
		dangling.Put(cid, 0)
	}

	// Walk every branch head toward the root and clear reachable
	// commits. The visited set stops each walk at the first commit a
	// previous branch already covered, so shared history prefixes are
	// traversed once.
	branches, err := m.db.store.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	visited := index.New()
	for _, b := range branches {
		cid := b.Head
		for cid != models.RootCommitID {
			if visited.Contains(cid) {
				break
			}
			visited.Put(cid, 0)
			dangling.Remove(cid)

			parent, err := m.db.ParentOf(ctx, cid)
			if err != nil {
				return nil, err
			}
			cid = parent
		}
	}

	return dangling.IDs(), nil
}

// PruneDanglingCommits deletes all dangling commits and returns how
// many were removed. Deletion happens outside the freeze lock in
// bounded batches; a crash mid-prune leaves a consistent state and
// the next run picks up the remainder.
func (m *Maintenance) PruneDanglingCommits(ctx context.Context, expiry time.Duration) (int, error) {
	cids, err := m.FindDanglingCommits(ctx, expiry)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(cids); i += store.MaxDeleteBatch {
		end := min(i+store.MaxDeleteBatch, len(cids))
		if err := m.db.store.DeleteCommits(ctx, cids[i:end]); err != nil {
			return i, err
		}
	}

	m.db.logger.Info("commit gc complete", "pruned", len(cids))
	return len(cids), nil
}

// FindUnreferencedDocuments returns the ids of documents in the
// collection that are older than expiry and referenced by no commit
// at all, dangling or not. A reference from a not-yet-pruned dangling
// commit still protects a document; prune commits first if those
// documents should become collectible.
func (m *Maintenance) FindUnreferencedDocuments(ctx context.Context, collection string, expiry time.Duration) ([]uint64, error) {
	if err := m.db.store.Freeze(ctx); err != nil {
		return nil, err
	}
	defer m.db.store.Unfreeze(ctx)
	return m.findUnreferencedDocuments(ctx, collection, expiry)
}

func (m *Maintenance) findUnreferencedDocuments(ctx context.Context, collection string, expiry time.Duration) ([]uint64, error) {
	maxTime := maxTimeFor(expiry)

	expired, err := m.db.store.DocumentIDsBefore(ctx, collection, maxTime)
	if err != nil {
		return nil, err
	}
	unreferenced := index.NewWithCapacity(len(expired))
	for _, id := range expired {
		unreferenced.Put(id, 0)
	}

	// A commit references a document through its delta value
	err = m.db.store.ScanDeltas(ctx, collection, func(_, value uint64) error {
		unreferenced.Remove(value)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return unreferenced.IDs(), nil
}

// PruneUnreferencedDocuments deletes all unreferenced documents in a
// collection and returns how many were removed.
func (m *Maintenance) PruneUnreferencedDocuments(ctx context.Context, collection string, expiry time.Duration) (int, error) {
	ids, err := m.FindUnreferencedDocuments(ctx, collection, expiry)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(ids); i += store.MaxDeleteBatch {
		end := min(i+store.MaxDeleteBatch, len(ids))
		if err := m.db.store.DeleteDocuments(ctx, collection, ids[i:end]); err != nil {
			return i, err
		}
	}

	m.db.logger.Info("document gc complete", "collection", collection, "pruned", len(ids))
	return len(ids), nil
}

func maxTimeFor(expiry time.Duration) int64 {
	return time.Now().Add(-expiry).UnixMilli()
}
