package store

import "errors"

var (
	// ErrUnknownCommit is returned when a commit id is not present.
	ErrUnknownCommit = errors.New("unknown commit")

	// ErrUnknownBranch is returned when a branch name is not present.
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrUnknownDocument is returned when a document id is not
	// present in the collection.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrBranchExists is returned by CreateBranch for a name already
	// in use.
	ErrBranchExists = errors.New("branch already exists")

	// ErrHeadMoved is returned by SwapBranchHead when the branch head
	// no longer matches the expected commit id.
	ErrHeadMoved = errors.New("branch head moved")

	// ErrLockHeld is returned by Freeze when the maintenance lock is
	// already taken.
	ErrLockHeld = errors.New("maintenance lock held")

	// ErrBatchTooLarge is returned by batch deletes when the id set
	// exceeds MaxDeleteBatch.
	ErrBatchTooLarge = errors.New("delete batch exceeds maximum size")
)
