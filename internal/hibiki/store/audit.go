package store

import (
	"context"
	"fmt"

	"github.com/hibiki-ai/hibiki/internal/hibiki/orchestrator"
)

// AuditLog persists pipeline outcomes. It satisfies the orchestrator's
// AuditSink contract.
type AuditLog struct {
	store *Store
}

// Audit returns the store's audit accessor.
func (s *Store) Audit() *AuditLog {
	return &AuditLog{store: s}
}

// Record inserts one pipeline outcome.
func (a *AuditLog) Record(ctx context.Context, e orchestrator.AuditEntry) error {
	_, err := a.store.db.ExecContext(ctx, `
		INSERT INTO audit_log (principal, session_id, trace_id, command, strategy, action, result_type, agent_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Principal, e.SessionID, e.TraceID, e.Command, e.Strategy, e.Action, e.ResultType, e.AgentError, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert audit entry: %w", err)
	}
	return nil
}

// RecentForPrincipal returns the principal's newest entries, newest first,
// capped at limit.
func (a *AuditLog) RecentForPrincipal(ctx context.Context, principal string, limit int) ([]orchestrator.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.store.db.QueryContext(ctx, `
		SELECT principal, session_id, trace_id, command, strategy, action, result_type, agent_error, created_at
		FROM audit_log WHERE principal = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		principal, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query audit entries: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.AuditEntry
	for rows.Next() {
		var e orchestrator.AuditEntry
		if err := rows.Scan(&e.Principal, &e.SessionID, &e.TraceID, &e.Command, &e.Strategy,
			&e.Action, &e.ResultType, &e.AgentError, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
