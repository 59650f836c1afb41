// Package audit fans pipeline outcomes out to the configured sinks: the
// SQLite audit log always, and optionally a Matrix ops room so operators
// can watch mutating activity without tailing the database.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiki-ai/hibiki/common/retry"
	"github.com/hibiki-ai/hibiki/internal/hibiki/orchestrator"
)

// Sender is the subset of the Matrix client the notifier needs. Defined
// as an interface so the notifier can be unit-tested without a homeserver.
type Sender interface {
	SendNotice(ctx context.Context, roomID, message string) error
}

// MatrixNotifier posts one notice per pipeline outcome to an ops room. It
// satisfies the orchestrator's AuditSink contract; send failures are
// logged and never propagated, so a flaky homeserver cannot fail a user
// request.
type MatrixNotifier struct {
	sender Sender
	roomID string
}

// NewMatrixNotifier creates a notifier posting to roomID via sender.
func NewMatrixNotifier(sender Sender, roomID string) *MatrixNotifier {
	return &MatrixNotifier{sender: sender, roomID: roomID}
}

// Record implements orchestrator.AuditSink.
func (n *MatrixNotifier) Record(ctx context.Context, e orchestrator.AuditEntry) error {
	if n.roomID == "" {
		return nil
	}

	msg := format(e)
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}, func() error {
		return n.sender.SendNotice(ctx, n.roomID, msg)
	})
	if err != nil {
		slog.Warn("audit: failed to send room notice", "room", n.roomID, "err", err)
	}
	return nil
}

// format renders one outcome as a compact notice line.
func format(e orchestrator.AuditEntry) string {
	icon := resultIcon(e.ResultType, e.AgentError)
	msg := fmt.Sprintf("%s %s [%s]", icon, e.Principal, e.ResultType)
	if e.Action != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Action)
	}
	if e.Strategy != "" {
		msg = fmt.Sprintf("%s via %s", msg, e.Strategy)
	}
	if e.AgentError != "" {
		msg = fmt.Sprintf("%s\n  handler error: %s", msg, e.AgentError)
	}
	return msg
}

func resultIcon(resultType, agentError string) string {
	switch {
	case resultType == "error":
		return "🚨"
	case agentError != "":
		return "⚠️"
	case resultType == "confirmation_required":
		return "🔔"
	case resultType == "authorization_required":
		return "🔑"
	default:
		return "✅"
	}
}

// Fanout delivers each entry to every sink in order. A sink's error is
// returned but does not stop the remaining sinks.
type Fanout []orchestrator.AuditSink

// Record implements orchestrator.AuditSink.
func (f Fanout) Record(ctx context.Context, e orchestrator.AuditEntry) error {
	var first error
	for _, sink := range f {
		if err := sink.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Noop is the sink used when auditing is disabled.
type Noop struct{}

// Record does nothing.
func (Noop) Record(context.Context, orchestrator.AuditEntry) error { return nil }
