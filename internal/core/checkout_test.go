package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalvik/ovc/internal/store"
)

func TestResolveRef(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	c, err := db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 100},
	})
	require.NoError(t, err)

	// Branch name resolves to its head
	cid, err := db.ResolveRef(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, c.ID, cid)

	// Decimal commit id resolves to itself
	cid, err = db.ResolveRef(ctx, fmt.Sprintf("%d", c.ID))
	require.NoError(t, err)
	assert.Equal(t, c.ID, cid)

	// The implicit root is a valid ref
	cid, err = db.ResolveRef(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cid)

	// Missing commit ids and names fail with the right kinds
	_, err = db.ResolveRef(ctx, "99999")
	assert.ErrorIs(t, err, store.ErrUnknownCommit)
	_, err = db.ResolveRef(ctx, "no-such-branch")
	assert.ErrorIs(t, err, store.ErrUnknownBranch)
}

func TestSnapshot_Isolation(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	// Commit A inserts elvis
	insert, err := db.Put(ctx, "people", 7, []byte(`{"name":"elvis","age":3}`))
	require.NoError(t, err)
	commitA, err := db.Commit(ctx, "master", []Change{insert})
	require.NoError(t, err)

	snapA, err := db.Checkout(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, commitA.ID, snapA.CommitID())

	// Commit B modifies elvis's age after the snapshot was taken
	update, err := db.Put(ctx, "people", 7, []byte(`{"name":"elvis","age":4}`))
	require.NoError(t, err)
	commitB, err := db.Commit(ctx, "master", []Change{update})
	require.NoError(t, err)

	// The old snapshot still sees the original revision
	doc, err := snapA.GetDocument(ctx, "people", 7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"elvis","age":3}`, string(doc.Data))

	// Checkout by commit id agrees with the long-held snapshot
	byID := db.CheckoutCommit(commitA.ID)
	doc, err = byID.GetDocument(ctx, "people", 7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"elvis","age":3}`, string(doc.Data))

	// A fresh checkout of the branch sees the new revision
	snapB, err := db.Checkout(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, commitB.ID, snapB.CommitID())
	doc, err = snapB.GetDocument(ctx, "people", 7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"elvis","age":4}`, string(doc.Data))

	// Re-reading the old snapshot after all of this is idempotent
	v, found, err := snapA.Get(ctx, "people", 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, insert.Value, v)
}

func TestSnapshot_ObjectNeverExisted(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	c, err := db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 100},
	})
	require.NoError(t, err)

	snap := db.CheckoutCommit(c.ID)
	_, found, err := snap.Get(ctx, "people", 42)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = snap.GetDocument(ctx, "people", 42)
	assert.ErrorIs(t, err, store.ErrUnknownDocument)
}

func TestSnapshot_AtRootSeesNothing(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	_, err := db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 100},
	})
	require.NoError(t, err)

	root := db.CheckoutCommit(0)
	_, found, err := root.Get(ctx, "people", 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSnapshot_BranchesShareAncestors(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	base, err := db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 100},
	})
	require.NoError(t, err)

	// A feature branch forks at the shared base commit
	require.NoError(t, db.CreateBranch(ctx, "feature", "master"))

	_, err = db.Commit(ctx, "master", []Change{
		{Collection: "people", ObjectID: 1, Value: 200},
	})
	require.NoError(t, err)
	_, err = db.Commit(ctx, "feature", []Change{
		{Collection: "people", ObjectID: 1, Value: 300},
	})
	require.NoError(t, err)

	for ref, want := range map[string]uint64{
		"master":  200,
		"feature": 300,
	} {
		snap, err := db.Checkout(ctx, ref)
		require.NoError(t, err)
		v, found, err := snap.Get(ctx, "people", 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, v, "branch %s", ref)
	}

	// Both branches still agree on the shared ancestor
	snap := db.CheckoutCommit(base.ID)
	v, found, err := snap.Get(ctx, "people", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(100), v)
}

func TestResolve_UnknownCommit(t *testing.T) {
	db, _ := newTestDB(t)

	_, _, err := db.Resolve(context.Background(), 424242, "people", 1)
	assert.ErrorIs(t, err, store.ErrUnknownCommit)
}
