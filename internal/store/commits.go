package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kalvik/ovc/internal/index"
	"github.com/kalvik/ovc/internal/models"
)

// PutCommit stores a commit and its delta entries in one transaction.
func (s *SQLite) PutCommit(ctx context.Context, c *models.Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO commits (id, parent, timestamp) VALUES (?, ?, ?)",
		int64(c.ID), int64(c.Parent), nullableMillis(c.Timestamp),
	); err != nil {
		return fmt.Errorf("insert commit %d: %w", c.ID, err)
	}

	for collection, ix := range c.Deltas {
		seq := 0
		for oid, value := range ix.All() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO commit_deltas (commit_id, collection, seq, object_id, value)
				VALUES (?, ?, ?, ?, ?)`,
				int64(c.ID), collection, seq, int64(oid), int64(value),
			); err != nil {
				return fmt.Errorf("insert delta for commit %d: %w", c.ID, err)
			}
			seq++
		}
	}

	return tx.Commit()
}

// GetCommit retrieves a commit and its deltas by id.
func (s *SQLite) GetCommit(ctx context.Context, id uint64) (*models.Commit, error) {
	c := &models.Commit{ID: id, Deltas: make(map[string]*index.IdIndex)}

	var parent int64
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT parent, timestamp FROM commits WHERE id = ?", int64(id),
	).Scan(&parent, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commit %d: %w", id, ErrUnknownCommit)
	}
	if err != nil {
		return nil, fmt.Errorf("load commit %d: %w", id, err)
	}
	c.Parent = uint64(parent)
	if ts.Valid {
		c.Timestamp = ts.Int64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, object_id, value FROM commit_deltas
		WHERE commit_id = ? ORDER BY collection, seq`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("load deltas for commit %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var collection string
		var oid, value int64
		if err := rows.Scan(&collection, &oid, &value); err != nil {
			return nil, fmt.Errorf("scan delta for commit %d: %w", id, err)
		}
		c.Delta(collection).Put(uint64(oid), uint64(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load deltas for commit %d: %w", id, err)
	}

	return c, nil
}

// HasCommit reports whether a commit exists.
func (s *SQLite) HasCommit(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM commits WHERE id = ?", int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check commit %d: %w", id, err)
	}
	return true, nil
}

// CommitIDsBefore returns ids of commits older than maxTime, treating
// a missing timestamp as older than everything.
func (s *SQLite) CommitIDsBefore(ctx context.Context, maxTime int64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM commits
		WHERE timestamp IS NULL OR timestamp < ?
		ORDER BY id`, maxTime)
	if err != nil {
		return nil, fmt.Errorf("scan expired commits: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired commits: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan expired commits: %w", err)
	}
	return ids, nil
}

// ScanDeltas streams every delta entry of a collection across all
// stored commits.
func (s *SQLite) ScanDeltas(ctx context.Context, collection string, fn func(objectID, value uint64) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_id, value FROM commit_deltas
		WHERE collection = ? ORDER BY commit_id, seq`, collection)
	if err != nil {
		return fmt.Errorf("scan deltas for %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var oid, value int64
		if err := rows.Scan(&oid, &value); err != nil {
			return fmt.Errorf("scan deltas for %s: %w", collection, err)
		}
		if err := fn(uint64(oid), uint64(value)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan deltas for %s: %w", collection, err)
	}
	return nil
}

// CommitLog returns up to limit commits in descending id order.
func (s *SQLite) CommitLog(ctx context.Context, limit int) ([]*models.Commit, error) {
	query := "SELECT id FROM commits ORDER BY id DESC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("load commit log: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("load commit log: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load commit log: %w", err)
	}

	commits := make([]*models.Commit, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCommit(ctx, id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// DeleteCommits removes a batch of commits and their delta entries.
func (s *SQLite) DeleteCommits(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d commits: %w", len(ids), ErrBatchTooLarge)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit delete: %w", err)
	}
	defer tx.Rollback()

	ph := placeholders(len(ids))
	args := idArgs(ids)
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM commit_deltas WHERE commit_id IN ("+ph+")", args...); err != nil {
		return fmt.Errorf("delete commit deltas: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM commits WHERE id IN ("+ph+")", args...); err != nil {
		return fmt.Errorf("delete commits: %w", err)
	}

	return tx.Commit()
}
