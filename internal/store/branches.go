package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kalvik/ovc/internal/models"
)

// CreateBranch stores a new branch pointing at head.
func (s *SQLite) CreateBranch(ctx context.Context, name string, head uint64) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO branches (name, head) VALUES (?, ?)",
		name, int64(head))
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("branch %s: %w", name, ErrBranchExists)
	}
	return nil
}

// GetBranch retrieves a branch by name.
func (s *SQLite) GetBranch(ctx context.Context, name string) (*models.Branch, error) {
	var head int64
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT head, created_at FROM branches WHERE name = ?", name,
	).Scan(&head, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	if err != nil {
		return nil, fmt.Errorf("load branch %s: %w", name, err)
	}
	return &models.Branch{
		Name:      name,
		Head:      uint64(head),
		CreatedAt: parseTimestamp(createdAt),
	}, nil
}

// ListBranches returns all branches sorted by name.
func (s *SQLite) ListBranches(ctx context.Context) ([]*models.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, head, created_at FROM branches ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		var name, createdAt string
		var head int64
		if err := rows.Scan(&name, &head, &createdAt); err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		branches = append(branches, &models.Branch{
			Name:      name,
			Head:      uint64(head),
			CreatedAt: parseTimestamp(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// SetBranchHead unconditionally repoints an existing branch.
func (s *SQLite) SetBranchHead(ctx context.Context, name string, head uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE branches SET head = ? WHERE name = ?", int64(head), name)
	if err != nil {
		return fmt.Errorf("set head of %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set head of %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	return nil
}

// SwapBranchHead repoints the branch only if its head still equals
// oldHead. The single guarded UPDATE is the atomic pointer swap that
// serializes concurrent writers on one branch.
func (s *SQLite) SwapBranchHead(ctx context.Context, name string, oldHead, newHead uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE branches SET head = ? WHERE name = ? AND head = ?",
		int64(newHead), name, int64(oldHead))
	if err != nil {
		return fmt.Errorf("swap head of %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap head of %s: %w", name, err)
	}
	if n == 0 {
		if _, err := s.GetBranch(ctx, name); err != nil {
			return err
		}
		return fmt.Errorf("branch %s: %w", name, ErrHeadMoved)
	}
	return nil
}

// DeleteBranch removes a branch by name.
func (s *SQLite) DeleteBranch(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM branches WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	return nil
}
