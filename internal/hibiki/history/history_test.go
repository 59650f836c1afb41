package history_test

import (
	"fmt"
	"testing"

	"github.com/hibiki-ai/hibiki/internal/hibiki/history"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

func entry(action string) pipeline.HistoryEntry {
	return pipeline.HistoryEntry{
		Command: &pipeline.ParsedCommand{Handler: "drive", Action: pipeline.Action(action)},
	}
}

func TestAppendEvictsOldestAtCapacity(t *testing.T) {
	log := history.NewMemoryLog()

	for i := 0; i < history.Capacity+1; i++ {
		log.Append("alice", entry(fmt.Sprintf("action_%d", i)))
	}

	got := log.Recent("alice")
	if len(got) != history.Capacity {
		t.Fatalf("len(Recent()) = %d, want %d", len(got), history.Capacity)
	}
	if got[0].Command.Action != "action_1" {
		t.Errorf("oldest entry = %q, want action_0 evicted", got[0].Command.Action)
	}
	if got[len(got)-1].Command.Action != pipeline.Action(fmt.Sprintf("action_%d", history.Capacity)) {
		t.Errorf("newest entry = %q, want the last appended", got[len(got)-1].Command.Action)
	}
}

func TestLastAndEmpty(t *testing.T) {
	log := history.NewMemoryLog()

	if log.Last("alice") != nil {
		t.Error("Last() on empty log != nil")
	}
	if got := log.Recent("alice"); len(got) != 0 {
		t.Errorf("Recent() on empty log = %v, want empty", got)
	}

	log.Append("alice", entry("delete_file_by_name"))
	log.Append("alice", entry("rename_file"))

	last := log.Last("alice")
	if last == nil || last.Command.Action != "rename_file" {
		t.Fatalf("Last() = %+v, want the newest entry", last)
	}
	if last.Timestamp.IsZero() {
		t.Error("Last().Timestamp is zero, want filled in on append")
	}
}

func TestUsersAreIsolated(t *testing.T) {
	log := history.NewMemoryLog()
	log.Append("alice", entry("delete_file_by_name"))

	if log.Last("bob") != nil {
		t.Error("Last(bob) != nil after alice's append")
	}
}

func TestRecentReturnsACopy(t *testing.T) {
	log := history.NewMemoryLog()
	log.Append("alice", entry("delete_file_by_name"))

	got := log.Recent("alice")
	got[0].Command = &pipeline.ParsedCommand{Action: "tampered"}

	if log.Last("alice").Command.Action != "delete_file_by_name" {
		t.Error("mutating the returned slice changed the stored entry")
	}
}

func TestForget(t *testing.T) {
	log := history.NewMemoryLog()
	log.Append("alice", entry("delete_file_by_name"))
	log.Forget("alice")

	if log.Last("alice") != nil {
		t.Error("Last() after Forget() != nil")
	}
}
