package audit_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiki-ai/hibiki/internal/hibiki/audit"
	"github.com/hibiki-ai/hibiki/internal/hibiki/orchestrator"
)

type fakeSender struct {
	notices []string
	fail    int // fail this many sends before succeeding
}

func (f *fakeSender) SendNotice(_ context.Context, _, message string) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("homeserver unavailable")
	}
	f.notices = append(f.notices, message)
	return nil
}

func TestMatrixNotifierFormatsOutcome(t *testing.T) {
	sender := &fakeSender{}
	n := audit.NewMatrixNotifier(sender, "!ops:example.org")

	err := n.Record(context.Background(), orchestrator.AuditEntry{
		Principal:  "alice",
		ResultType: "ok",
		Action:     "delete_file_by_name",
		Strategy:   "single_handler",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(sender.notices) != 1 {
		t.Fatalf("got %d notices, want 1", len(sender.notices))
	}
	for _, want := range []string{"alice", "delete_file_by_name", "single_handler"} {
		if !strings.Contains(sender.notices[0], want) {
			t.Errorf("notice %q missing %q", sender.notices[0], want)
		}
	}
}

func TestMatrixNotifierRetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{fail: 2}
	n := audit.NewMatrixNotifier(sender, "!ops:example.org")

	if err := n.Record(context.Background(), orchestrator.AuditEntry{Principal: "alice", ResultType: "ok"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(sender.notices) != 1 {
		t.Fatalf("got %d notices after retries, want 1", len(sender.notices))
	}
}

func TestMatrixNotifierSwallowsPersistentFailure(t *testing.T) {
	sender := &fakeSender{fail: 100}
	n := audit.NewMatrixNotifier(sender, "!ops:example.org")

	if err := n.Record(context.Background(), orchestrator.AuditEntry{Principal: "alice", ResultType: "ok"}); err != nil {
		t.Fatalf("Record() error = %v, want nil (best effort)", err)
	}
}

func TestMatrixNotifierDisabledWithoutRoom(t *testing.T) {
	sender := &fakeSender{}
	n := audit.NewMatrixNotifier(sender, "")

	if err := n.Record(context.Background(), orchestrator.AuditEntry{Principal: "alice"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(sender.notices) != 0 {
		t.Errorf("got %d notices with no room configured, want 0", len(sender.notices))
	}
}

type countingSink struct {
	calls int
	err   error
}

func (c *countingSink) Record(context.Context, orchestrator.AuditEntry) error {
	c.calls++
	return c.err
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	failing := &countingSink{err: errors.New("db locked")}
	ok := &countingSink{}
	f := audit.Fanout{failing, ok}

	err := f.Record(context.Background(), orchestrator.AuditEntry{Principal: "alice"})
	if err == nil || !strings.Contains(err.Error(), "db locked") {
		t.Fatalf("Record() error = %v, want first sink's error", err)
	}
	if ok.calls != 1 {
		t.Errorf("second sink called %d times, want 1", ok.calls)
	}
}
