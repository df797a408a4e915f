package models

import (
	"time"

	"github.com/kalvik/ovc/internal/index"
)

// RootCommitID is the implicit root of every history. It is never
// stored and never deleted; a commit with Parent == RootCommitID is a
// first commit.
const RootCommitID uint64 = 0

// Commit is an immutable snapshot descriptor. Deltas holds, per
// collection, only the object ids whose current revision changed in
// this commit relative to Parent; an id absent here but present in an
// ancestor keeps the ancestor's revision.
type Commit struct {
	ID     uint64 `json:"id"`
	Parent uint64 `json:"parent"`
	// Timestamp is milliseconds since epoch; 0 means the commit
	// carries no timestamp, which maintenance treats as expired.
	Timestamp int64                     `json:"timestamp,omitempty"`
	Deltas    map[string]*index.IdIndex `json:"-"`
}

// NewCommit creates a commit stamped with the current wall clock.
func NewCommit(id, parent uint64) *Commit {
	return &Commit{
		ID:        id,
		Parent:    parent,
		Timestamp: time.Now().UnixMilli(),
		Deltas:    make(map[string]*index.IdIndex),
	}
}

// Delta returns the delta index for collection, creating it if needed.
func (c *Commit) Delta(collection string) *index.IdIndex {
	ix, ok := c.Deltas[collection]
	if !ok {
		ix = index.New()
		c.Deltas[collection] = ix
	}
	return ix
}

// IsRoot reports whether this commit is a first commit (its parent is
// the implicit root).
func (c *Commit) IsRoot() bool {
	return c.Parent == RootCommitID
}

// Time returns the commit timestamp as a time.Time, or the zero time
// if the commit carries no timestamp.
func (c *Commit) Time() time.Time {
	if c.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.Timestamp)
}
