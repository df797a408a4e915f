package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalvik/ovc/internal/index"
	"github.com/kalvik/ovc/internal/models"
	"github.com/kalvik/ovc/internal/store"
)

const gcExpiry = time.Minute

// oldMillis is a timestamp comfortably past any test expiry window.
func oldMillis() int64 {
	return time.Now().Add(-24 * time.Hour).UnixMilli()
}

func oldCommit(id, parent uint64, collection string, pairs ...uint64) *models.Commit {
	c := &models.Commit{
		ID:        id,
		Parent:    parent,
		Timestamp: oldMillis(),
		Deltas:    make(map[string]*index.IdIndex),
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		c.Delta(collection).Put(pairs[i], pairs[i+1])
	}
	return c
}

// danglingFixture builds the canonical scenario: a linear chain
// 1 -> 2 with master at 2, plus an orphaned commit 3 whose parent is
// 1 but which no branch references. Everything is old.
func danglingFixture(t *testing.T) (*DB, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	db := Open(st, nil)
	ctx := context.Background()

	require.NoError(t, st.PutCommit(ctx, oldCommit(1, 0, "people", 7, 100)))
	require.NoError(t, st.PutCommit(ctx, oldCommit(2, 1, "people", 7, 101)))
	require.NoError(t, st.PutCommit(ctx, oldCommit(3, 1, "people", 8, 102)))
	require.NoError(t, st.CreateBranch(ctx, "master", 2))
	return db, st
}

func TestFindDanglingCommits(t *testing.T) {
	db, _ := danglingFixture(t)

	cids, err := db.Maintenance().FindDanglingCommits(context.Background(), gcExpiry)
	require.NoError(t, err)

	// Only the orphan is dangling; 1 and 2 are ancestors of master
	assert.Equal(t, []uint64{3}, cids)
}

func TestFindDanglingCommits_RecentCommitsAreKept(t *testing.T) {
	db, st := newTestDB(t)
	ctx := context.Background()

	// A freshly created commit is orphaned by moving the branch away
	c, err := db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 100},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetBranchHead(ctx, "master", 0))

	// Unreachable but inside the expiry window: not dangling yet
	cids, err := db.Maintenance().FindDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Empty(t, cids)

	// With a zero expiry window it becomes collectible
	time.Sleep(2 * time.Millisecond)
	cids, err = db.Maintenance().FindDanglingCommits(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{c.ID}, cids)
}

func TestFindDanglingCommits_MissingTimestampIsEligible(t *testing.T) {
	db, st := newTestDB(t)
	ctx := context.Background()

	// Legacy commit without a timestamp, unreachable from any branch
	require.NoError(t, st.PutCommit(ctx, &models.Commit{ID: 50, Parent: 0}))

	cids, err := db.Maintenance().FindDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, []uint64{50}, cids)
}

func TestFindDanglingCommits_SharedAncestorsWalkedOnce(t *testing.T) {
	db, st := danglingFixture(t)
	ctx := context.Background()

	// A second branch sharing the master chain must not change the
	// result or resurrect the orphan
	require.NoError(t, st.CreateBranch(ctx, "feature", 1))

	cids, err := db.Maintenance().FindDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, cids)
}

func TestPruneDanglingCommits(t *testing.T) {
	db, st := danglingFixture(t)
	ctx := context.Background()

	n, err := db.Maintenance().PruneDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := st.HasCommit(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	for _, id := range []uint64{1, 2} {
		ok, err := st.HasCommit(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "commit %d", id)
	}
}

func TestPruneDanglingCommits_Idempotent(t *testing.T) {
	db, _ := danglingFixture(t)
	ctx := context.Background()

	n, err := db.Maintenance().PruneDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A second run with no new commits deletes nothing
	n, err = db.Maintenance().PruneDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPruneDanglingCommits_Chunked(t *testing.T) {
	st := store.NewMemory()
	db := Open(st, nil)
	ctx := context.Background()

	// 2,500 orphaned commits force three delete batches; one
	// reachable old commit must survive all of them
	const orphans = 2500
	for i := uint64(1); i <= orphans; i++ {
		require.NoError(t, st.PutCommit(ctx, oldCommit(i, 0, "people")))
	}
	keep := oldCommit(orphans+1, 0, "people")
	require.NoError(t, st.PutCommit(ctx, keep))
	require.NoError(t, st.CreateBranch(ctx, "master", keep.ID))

	n, err := db.Maintenance().PruneDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, orphans, n)

	for _, id := range []uint64{1, orphans / 2, orphans} {
		ok, err := st.HasCommit(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "commit %d", id)
	}
	ok, err := st.HasCommit(ctx, keep.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindUnreferencedDocuments_OrderingDependency(t *testing.T) {
	db, st := danglingFixture(t)
	ctx := context.Background()
	m := db.Maintenance()

	// d1 is referenced only by the dangling commit 3
	d1 := &models.Document{ID: 102, Timestamp: oldMillis()}
	require.NoError(t, st.PutDocument(ctx, "people", d1))

	// Before pruning commit 3, d1 counts as referenced: even a
	// dangling commit protects its documents
	ids, err := m.FindUnreferencedDocuments(ctx, "people", gcExpiry)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = m.PruneDanglingCommits(ctx, gcExpiry)
	require.NoError(t, err)

	// After the commit-level prune, the same scan reports d1
	ids, err = m.FindUnreferencedDocuments(ctx, "people", gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, []uint64{102}, ids)

	n, err := m.PruneUnreferencedDocuments(ctx, "people", gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = st.GetDocument(ctx, "people", 102)
	assert.ErrorIs(t, err, store.ErrUnknownDocument)
}

func TestFindUnreferencedDocuments_ReferencedByValueNotKey(t *testing.T) {
	db, st := newTestDB(t)
	ctx := context.Background()

	// Commit maps object id 7 to revision 100; the revision id is
	// what protects a document, not the object id
	require.NoError(t, st.PutCommit(ctx, oldCommit(1, 0, "people", 7, 100)))
	require.NoError(t, st.SetBranchHead(ctx, "master", 1))

	referenced := &models.Document{ID: 100, Timestamp: oldMillis()}
	stray := &models.Document{ID: 7, Timestamp: oldMillis()}
	require.NoError(t, st.PutDocument(ctx, "people", referenced))
	require.NoError(t, st.PutDocument(ctx, "people", stray))

	ids, err := db.Maintenance().FindUnreferencedDocuments(ctx, "people", gcExpiry)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, ids)
}

func TestMaintenance_LockReleasedOnError(t *testing.T) {
	db, st := danglingFixture(t)
	ctx := context.Background()

	st.FailScans = true
	_, err := db.Maintenance().FindDanglingCommits(ctx, gcExpiry)
	require.Error(t, err)

	// The freeze lock must be released even on an aborted scan
	st.FailScans = false
	require.NoError(t, st.Freeze(ctx))
	require.NoError(t, st.Unfreeze(ctx))
}

func TestMaintenance_LockHeld(t *testing.T) {
	db, st := danglingFixture(t)
	ctx := context.Background()

	require.NoError(t, st.Freeze(ctx))
	defer st.Unfreeze(ctx)

	_, err := db.Maintenance().FindDanglingCommits(ctx, gcExpiry)
	assert.ErrorIs(t, err, store.ErrLockHeld)

	_, err = db.Maintenance().FindUnreferencedDocuments(ctx, "people", gcExpiry)
	assert.ErrorIs(t, err, store.ErrLockHeld)
}
