package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hibiki-ai/hibiki/internal/hibiki/stream"
)

// MessageStore persists chat exchanges. It satisfies the orchestrator's
// MessageStore contract.
type MessageStore struct {
	store *Store
}

// Messages returns the store's message accessor.
func (s *Store) Messages() *MessageStore {
	return &MessageStore{store: s}
}

// SaveExchange stores the user message and the assistant's answer as one
// transaction and returns the stored records for the final_response event.
func (m *MessageStore) SaveExchange(ctx context.Context, sessionID, principal, userText, assistantText string) ([]stream.Message, error) {
	now := time.Now()
	records := []stream.Message{
		{ID: uuid.NewString(), SessionID: sessionID, Role: "user", Content: userText, CreatedAt: now},
		{ID: uuid.NewString(), SessionID: sessionID, Role: "assistant", Content: assistantText, CreatedAt: now},
	}

	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin exchange: %w", err)
	}
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, principal, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.SessionID, principal, rec.Role, rec.Content, rec.CreatedAt,
		); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("store: insert %s message: %w", rec.Role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit exchange: %w", err)
	}
	return records, nil
}

// SessionMessages returns a session's messages, oldest first.
func (m *MessageStore) SessionMessages(ctx context.Context, sessionID string) ([]stream.Message, error) {
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var out []stream.Message
	for rows.Next() {
		var msg stream.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
