// CLAUDE:SUMMARY Media attachment rows; the bytes themselves live in object storage.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const mediaCols = `id, session_id, uploader_id, file_name, content_type, size_bytes, object_key, created_at`

// CreateMedia records an uploaded attachment.
func (s *Store) CreateMedia(ctx context.Context, m *Media) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO media (`+mediaCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.UploaderID, m.FileName, m.ContentType, m.SizeBytes, m.ObjectKey, m.CreatedAt,
	)
	return err
}

// GetMedia retrieves an attachment row by ID.
func (s *Store) GetMedia(ctx context.Context, id string) (*Media, error) {
	var m Media
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+mediaCols+` FROM media WHERE id = ?`, id).
		Scan(&m.ID, &m.SessionID, &m.UploaderID, &m.FileName, &m.ContentType, &m.SizeBytes, &m.ObjectKey, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan media: %w", err)
	}
	return &m, nil
}

// ListMedia returns a session's attachments, newest first.
func (s *Store) ListMedia(ctx context.Context, sessionID string) ([]*Media, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+mediaCols+` FROM media WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UploaderID, &m.FileName, &m.ContentType,
			&m.SizeBytes, &m.ObjectKey, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// DeleteMedia removes an attachment row.
func (s *Store) DeleteMedia(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
