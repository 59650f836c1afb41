// Package history keeps the per-user record of successfully executed
// mutating commands.
//
// The log is a bounded ring buffer (capacity 10, FIFO) read back as
// context for the next action parse, resolving "it" or "that file" to the
// last touched item. It is a heuristic convenience, not an authoritative
// undo log: concurrent requests from the same user may race on append
// order, which is acceptable because nothing correctness-critical reads
// it. That relaxation is deliberate.
package history

import (
	"sync"
	"time"

	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// Capacity is the maximum number of entries retained per user. Appending
// beyond it evicts exactly the oldest entry.
const Capacity = 10

// Log is the command-history contract the pipeline depends on. The
// in-memory implementation below is the default; the interface exists so
// the backing storage can be swapped without touching pipeline logic.
type Log interface {
	// Append records an executed mutating command for userID.
	Append(userID string, entry pipeline.HistoryEntry)

	// Recent returns the user's entries, oldest first. The returned slice
	// is a copy.
	Recent(userID string) []pipeline.HistoryEntry

	// Last returns the most recent entry, or nil when the user has none.
	Last(userID string) *pipeline.HistoryEntry
}

// MemoryLog is the in-memory Log. Entries are created on a user's first
// append and dropped wholesale on Forget (e.g. when the user disconnects).
//
// MemoryLog is safe for concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]pipeline.HistoryEntry
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]pipeline.HistoryEntry)}
}

// Append records entry for userID, evicting the oldest entry when the
// buffer is full. A zero Timestamp is filled in with the current time.
func (l *MemoryLog) Append(userID string, entry pipeline.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buf := append(l.entries[userID], entry)
	if len(buf) > Capacity {
		buf = buf[len(buf)-Capacity:]
	}
	l.entries[userID] = buf
}

// Recent returns a copy of userID's entries, oldest first.
func (l *MemoryLog) Recent(userID string) []pipeline.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	buf := l.entries[userID]
	out := make([]pipeline.HistoryEntry, len(buf))
	copy(out, buf)
	return out
}

// Last returns a copy of userID's most recent entry, or nil.
func (l *MemoryLog) Last(userID string) *pipeline.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	buf := l.entries[userID]
	if len(buf) == 0 {
		return nil
	}
	e := buf[len(buf)-1]
	return &e
}

// Forget drops every entry for userID.
func (l *MemoryLog) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
}
