// CLAUDE:SUMMARY Chat session and message persistence with token accounting.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sessionCols = `id, project_id, user_id, title, status, system_prompt,
	input_tokens, output_tokens, created_at, updated_at`

// CreateSession inserts a chat session.
func (s *Store) CreateSession(ctx context.Context, cs *ChatSession) error {
	now := time.Now().UnixMilli()
	if cs.CreatedAt == 0 {
		cs.CreatedAt = now
	}
	cs.UpdatedAt = now
	if cs.Status == "" {
		cs.Status = SessionActive
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.ProjectID, cs.UserID, cs.Title, cs.Status, cs.SystemPrompt,
		cs.InputTokens, cs.OutputTokens, cs.CreatedAt, cs.UpdatedAt,
	)
	return err
}

// GetSession retrieves a chat session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM chat_sessions WHERE id = ?`, id)
	var cs ChatSession
	err := row.Scan(&cs.ID, &cs.ProjectID, &cs.UserID, &cs.Title, &cs.Status, &cs.SystemPrompt,
		&cs.InputTokens, &cs.OutputTokens, &cs.CreatedAt, &cs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &cs, nil
}

// ListSessions returns a project's chat sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, projectID string) ([]*ChatSession, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM chat_sessions WHERE project_id = ? ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*ChatSession
	for rows.Next() {
		var cs ChatSession
		if err := rows.Scan(&cs.ID, &cs.ProjectID, &cs.UserID, &cs.Title, &cs.Status, &cs.SystemPrompt,
			&cs.InputTokens, &cs.OutputTokens, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &cs)
	}
	return sessions, rows.Err()
}

// UpdateSession updates title and status.
func (s *Store) UpdateSession(ctx context.Context, cs *ChatSession) error {
	cs.UpdatedAt = time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE chat_sessions SET title=?, status=?, updated_at=? WHERE id=?`,
		cs.Title, cs.Status, cs.UpdatedAt, cs.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddTokenUsage accumulates token counts onto a session.
func (s *Store) AddTokenUsage(ctx context.Context, sessionID string, input, output int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chat_sessions SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?,
		updated_at = ? WHERE id = ?`,
		input, output, time.Now().UnixMilli(), sessionID,
	)
	return err
}

// CreateMessage appends a message to a session.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	if m.MessageType == "" {
		m.MessageType = MessageText
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, message_type, content, extra_json,
		input_tokens, output_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.MessageType, m.Content, m.ExtraJSON,
		m.InputTokens, m.OutputTokens, m.CreatedAt,
	)
	return err
}

// ListMessages returns a session's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, role, message_type, content, extra_json,
		input_tokens, output_tokens, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.MessageType, &m.Content, &m.ExtraJSON,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
