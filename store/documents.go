// CLAUDE:SUMMARY Document CRUD, version snapshots, and version restore.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const documentCols = `id, project_id, title, doc_type, status, content_json,
	current_version, imported_from, created_by, created_at, updated_at`

// CreateDocument inserts a document together with its version-1 snapshot.
func (s *Store) CreateDocument(ctx context.Context, d *Document, versionID string) error {
	now := time.Now().UnixMilli()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.DocType == "" {
		d.DocType = DocTypeRequirements
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if d.ContentJSON == "" {
		d.ContentJSON = `{"type":"doc","content":[]}`
	}
	d.CurrentVersion = 1

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (`+documentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Title, d.DocType, d.Status, d.ContentJSON,
		d.CurrentVersion, d.ImportedFrom, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_versions (id, document_id, version, content_json, summary, created_by, created_at)
		VALUES (?, ?, 1, ?, 'création', ?, ?)`,
		versionID, d.ID, d.ContentJSON, d.CreatedBy, now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns a project's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]*Document, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+documentCols+` FROM documents WHERE project_id = ? ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Title, &d.DocType, &d.Status, &d.ContentJSON,
			&d.CurrentVersion, &d.ImportedFrom, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// UpdateDocumentMeta updates title, type, and status without touching
// content or versions.
func (s *Store) UpdateDocumentMeta(ctx context.Context, d *Document) error {
	d.UpdatedAt = time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE documents SET title=?, doc_type=?, status=?, updated_at=? WHERE id=?`,
		d.Title, d.DocType, d.Status, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveDocumentContent replaces the content tree, bumps the version, and
// records the snapshot, all in one transaction. expectedVersion guards
// against racing writers; pass the version the caller last read. Returns
// ErrVersionConflict when another writer got there first.
func (s *Store) SaveDocumentContent(ctx context.Context, docID, contentJSON, summary, userID, versionID string, expectedVersion int) (int, error) {
	now := time.Now().UnixMilli()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	newVersion := expectedVersion + 1
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET content_json=?, current_version=?, updated_at=?
		WHERE id=? AND current_version=?`,
		contentJSON, newVersion, now, docID, expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Either the document is gone or someone else bumped the version.
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE id=?`, docID).Scan(&exists); err != nil {
			return 0, err
		}
		if exists == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_versions (id, document_id, version, content_json, summary, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		versionID, docID, newVersion, contentJSON, summary, userID, now,
	); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newVersion, nil
}

// DeleteDocument removes a document (cascades to versions and sections).
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListVersions returns a document's snapshots, newest first, without the
// content payloads.
func (s *Store) ListVersions(ctx context.Context, docID string) ([]*DocumentVersion, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, document_id, version, '', summary, created_by, created_at
		FROM document_versions WHERE document_id = ? ORDER BY version DESC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Version, &v.ContentJSON, &v.Summary, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// GetVersion retrieves one snapshot including its content.
func (s *Store) GetVersion(ctx context.Context, docID string, version int) (*DocumentVersion, error) {
	var v DocumentVersion
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, document_id, version, content_json, summary, created_by, created_at
		FROM document_versions WHERE document_id = ? AND version = ?`, docID, version).
		Scan(&v.ID, &v.DocumentID, &v.Version, &v.ContentJSON, &v.Summary, &v.CreatedBy, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return &v, nil
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &d.DocType, &d.Status, &d.ContentJSON,
		&d.CurrentVersion, &d.ImportedFrom, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}
