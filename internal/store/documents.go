package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kalvik/ovc/internal/models"
)

// PutDocument stores a document revision in a collection.
func (s *SQLite) PutDocument(ctx context.Context, collection string, doc *models.Document) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp`,
		collection, int64(doc.ID), []byte(doc.Data), nullableMillis(doc.Timestamp),
	); err != nil {
		return fmt.Errorf("put document %d in %s: %w", doc.ID, collection, err)
	}
	return nil
}

// GetDocument retrieves a document revision by id.
func (s *SQLite) GetDocument(ctx context.Context, collection string, id uint64) (*models.Document, error) {
	doc := &models.Document{ID: id}
	var data []byte
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT data, timestamp FROM documents WHERE collection = ? AND id = ?",
		collection, int64(id),
	).Scan(&data, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d in %s: %w", id, collection, ErrUnknownDocument)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d in %s: %w", id, collection, err)
	}
	doc.Data = data
	if ts.Valid {
		doc.Timestamp = ts.Int64
	}
	return doc, nil
}

// DocumentIDsBefore returns ids of documents older than maxTime,
// treating a missing timestamp as older than everything.
func (s *SQLite) DocumentIDsBefore(ctx context.Context, collection string, maxTime int64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents
		WHERE collection = ? AND (timestamp IS NULL OR timestamp < ?)
		ORDER BY id`, collection, maxTime)
	if err != nil {
		return nil, fmt.Errorf("scan expired documents in %s: %w", collection, err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired documents in %s: %w", collection, err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan expired documents in %s: %w", collection, err)
	}
	return ids, nil
}

// DeleteDocuments removes a batch of documents from a collection.
func (s *SQLite) DeleteDocuments(ctx context.Context, collection string, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d documents: %w", len(ids), ErrBatchTooLarge)
	}

	args := append([]any{collection}, idArgs(ids)...)
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id IN ("+placeholders(len(ids))+")",
		args...); err != nil {
		return fmt.Errorf("delete documents in %s: %w", collection, err)
	}
	return nil
}
