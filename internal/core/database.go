// Package core implements the versioned index engine: the commit
// graph, branch directory, snapshot resolution, and the maintenance
// operations that reclaim unreachable history. All state lives in a
// store.Store; the engine itself holds no caches, so independent
// callers may read concurrently while writers serialize per branch.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalvik/ovc/internal/models"
	"github.com/kalvik/ovc/internal/store"
)

// DB is the versioned database engine over a persistent store.
type DB struct {
	store  store.Store
	logger *slog.Logger
}

// Open creates an engine over the given store. A nil logger falls
// back to slog.Default.
func Open(st store.Store, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{store: st, logger: logger}
}

// Store returns the underlying persistent store.
func (db *DB) Store() store.Store {
	return db.store
}

// Init ensures the default branch exists, pointing at the implicit
// root commit. Safe to call on an already-initialized database.
func (db *DB) Init(ctx context.Context) error {
	err := db.store.CreateBranch(ctx, models.DefaultBranch, models.RootCommitID)
	if err != nil && !errors.Is(err, store.ErrBranchExists) {
		return fmt.Errorf("initialize default branch: %w", err)
	}
	return nil
}

// NewDocumentID allocates a fresh document revision id.
func (db *DB) NewDocumentID(ctx context.Context) (uint64, error) {
	return db.store.NextID(ctx, store.SeqDocuments)
}
