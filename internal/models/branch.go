package models

import "time"

// DefaultBranch is the branch created on repository initialization.
const DefaultBranch = "master"

// Branch is a named, mutable reference to a commit id. Head is
// RootCommitID until the first commit lands on the branch.
type Branch struct {
	Name      string    `json:"name"`
	Head      uint64    `json:"head"`
	CreatedAt time.Time `json:"created_at"`
}
