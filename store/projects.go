// CLAUDE:SUMMARY Project CRUD and membership management with roles.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const projectCols = `id, name, description, owner_id, status, created_at, updated_at`

// CreateProject inserts a project and its owner membership in one
// transaction.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusDraft
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.OwnerID, p.Status, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, added_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.OwnerID, RoleOwner, now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjectsForUser returns the projects the user is a member of, newest
// first.
func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.owner_id, p.status, p.created_at, p.updated_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// UpdateProject updates a project's mutable fields.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, status=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteProject removes a project (cascades to members, documents, sessions).
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddMember adds a user to a project. Returns ErrDuplicate when already a
// member.
func (s *Store) AddMember(ctx context.Context, m *ProjectMember) error {
	if m.AddedAt == 0 {
		m.AddedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, added_at) VALUES (?, ?, ?, ?)`,
		m.ProjectID, m.UserID, m.Role, m.AddedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: member %s", ErrDuplicate, m.UserID)
	}
	return err
}

// RemoveMember drops a membership. The owner cannot be removed.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ? AND role != ?`,
		projectID, userID, RoleOwner,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListMembers returns a project's memberships.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]*ProjectMember, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT project_id, user_id, role, added_at
		FROM project_members WHERE project_id = ? ORDER BY added_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*ProjectMember
	for rows.Next() {
		var m ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// MemberRole returns the user's role in the project, or ErrNotFound when the
// user is not a member.
func (s *Store) MemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := s.DB.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}
