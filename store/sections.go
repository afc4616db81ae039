// CLAUDE:SUMMARY Section outline persistence and chat-session bindings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sectionCols = `id, document_id, section_number, title, level, parent_id, position,
	status, prosemirror_node_id, content_preview, open_questions, ai_generated,
	created_at, updated_at`

// ReplaceSections swaps a document's entire outline in one transaction —
// used after import, which rebuilds every section row. Bindings on the old
// sections are dropped by the cascade.
func (s *Store) ReplaceSections(ctx context.Context, docID string, sections []*Section) error {
	now := time.Now().UnixMilli()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, docID); err != nil {
		return err
	}
	for i, sec := range sections {
		sec.DocumentID = docID
		sec.Position = i
		if sec.Status == "" {
			sec.Status = StatusDraft
		}
		if sec.OpenQuestions == "" {
			sec.OpenQuestions = "[]"
		}
		if sec.CreatedAt == 0 {
			sec.CreatedAt = now
		}
		sec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (`+sectionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sec.ID, sec.DocumentID, sec.Number, sec.Title, sec.Level, sec.ParentID, sec.Position,
			sec.Status, sec.NodeID, sec.ContentPreview, sec.OpenQuestions, sec.AIGenerated,
			sec.CreatedAt, sec.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateSection appends one section at the end of the document outline.
func (s *Store) CreateSection(ctx context.Context, sec *Section) error {
	now := time.Now().UnixMilli()
	if sec.CreatedAt == 0 {
		sec.CreatedAt = now
	}
	sec.UpdatedAt = now
	if sec.Status == "" {
		sec.Status = StatusDraft
	}
	if sec.OpenQuestions == "" {
		sec.OpenQuestions = "[]"
	}

	var maxPos sql.NullInt64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(position) FROM sections WHERE document_id = ?`, sec.DocumentID).Scan(&maxPos); err != nil {
		return err
	}
	if maxPos.Valid {
		sec.Position = int(maxPos.Int64) + 1
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sections (`+sectionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.DocumentID, sec.Number, sec.Title, sec.Level, sec.ParentID, sec.Position,
		sec.Status, sec.NodeID, sec.ContentPreview, sec.OpenQuestions, sec.AIGenerated,
		sec.CreatedAt, sec.UpdatedAt,
	)
	return err
}

// GetSection retrieves a section by ID.
func (s *Store) GetSection(ctx context.Context, id string) (*Section, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sectionCols+` FROM sections WHERE id = ?`, id)
	return scanSection(row)
}

// ListSections returns a document's sections in outline order.
func (s *Store) ListSections(ctx context.Context, docID string) ([]*Section, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+sectionCols+` FROM sections WHERE document_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*Section
	for rows.Next() {
		sec, err := scanSectionRows(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// UpdateSection updates a section's mutable fields.
func (s *Store) UpdateSection(ctx context.Context, sec *Section) error {
	sec.UpdatedAt = time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sections SET section_number=?, title=?, level=?, parent_id=?, status=?,
		content_preview=?, open_questions=?, ai_generated=?, updated_at=?
		WHERE id=?`,
		sec.Number, sec.Title, sec.Level, sec.ParentID, sec.Status,
		sec.ContentPreview, sec.OpenQuestions, sec.AIGenerated, sec.UpdatedAt, sec.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteSection removes a section (cascades to its bindings).
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CreateBinding attaches a chat session to a section.
func (s *Store) CreateBinding(ctx context.Context, b *SectionBinding) error {
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixMilli()
	}
	if b.BindingType == "" {
		b.BindingType = BindingDiscussion
	}
	b.Active = true
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO section_bindings (id, section_id, session_id, binding_type, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		b.ID, b.SectionID, b.SessionID, b.BindingType, b.CreatedAt,
	)
	return err
}

// GetBinding retrieves a binding by ID.
func (s *Store) GetBinding(ctx context.Context, id string) (*SectionBinding, error) {
	bindings, err := s.queryBindings(ctx,
		`SELECT id, section_id, session_id, binding_type, active, created_at, deactivated_at
		FROM section_bindings WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, ErrNotFound
	}
	return bindings[0], nil
}

// DeactivateBinding retires a binding, keeping the row for history.
func (s *Store) DeactivateBinding(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE section_bindings SET active=0, deactivated_at=? WHERE id=? AND active=1`,
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListBindings returns a section's bindings, active first, newest first.
func (s *Store) ListBindings(ctx context.Context, sectionID string) ([]*SectionBinding, error) {
	return s.queryBindings(ctx,
		`SELECT id, section_id, session_id, binding_type, active, created_at, deactivated_at
		FROM section_bindings WHERE section_id = ? ORDER BY active DESC, created_at DESC`, sectionID)
}

// ListActiveBindingsForSession returns the sections a session is currently
// bound to.
func (s *Store) ListActiveBindingsForSession(ctx context.Context, sessionID string) ([]*SectionBinding, error) {
	return s.queryBindings(ctx,
		`SELECT id, section_id, session_id, binding_type, active, created_at, deactivated_at
		FROM section_bindings WHERE session_id = ? AND active = 1 ORDER BY created_at DESC`, sessionID)
}

func (s *Store) queryBindings(ctx context.Context, query, arg string) ([]*SectionBinding, error) {
	rows, err := s.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*SectionBinding
	for rows.Next() {
		var b SectionBinding
		var active int
		var deactivated sql.NullInt64
		if err := rows.Scan(&b.ID, &b.SectionID, &b.SessionID, &b.BindingType, &active, &b.CreatedAt, &deactivated); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b.Active = active != 0
		if deactivated.Valid {
			b.DeactivatedAt = deactivated.Int64
		}
		bindings = append(bindings, &b)
	}
	return bindings, rows.Err()
}

func scanSection(row *sql.Row) (*Section, error) {
	var sec Section
	var aiGen int
	err := row.Scan(&sec.ID, &sec.DocumentID, &sec.Number, &sec.Title, &sec.Level, &sec.ParentID,
		&sec.Position, &sec.Status, &sec.NodeID, &sec.ContentPreview, &sec.OpenQuestions, &aiGen,
		&sec.CreatedAt, &sec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan section: %w", err)
	}
	sec.AIGenerated = aiGen != 0
	return &sec, nil
}

func scanSectionRows(rows *sql.Rows) (*Section, error) {
	var sec Section
	var aiGen int
	err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Number, &sec.Title, &sec.Level, &sec.ParentID,
		&sec.Position, &sec.Status, &sec.NodeID, &sec.ContentPreview, &sec.OpenQuestions, &aiGen,
		&sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan section: %w", err)
	}
	sec.AIGenerated = aiGen != 0
	return &sec, nil
}
