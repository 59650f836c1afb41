// Package pipeline defines the data contract shared by every stage of the
// Hibiki command pipeline: the structured command produced by the action
// parser, the routing decision produced by the strategy router, and the
// single result type every handler and the orchestrator must honour.
//
// The types here are deliberately free of behaviour beyond construction and
// copying; the state machines that act on them live in the gate,
// orchestrator, and stream packages.
package pipeline

import (
	"encoding/json"
	"time"
)

// Action is a handler-family action key, e.g. "delete_file_by_name".
// Each family defines its own closed set of actions in its catalog manifest;
// ActionUnknown is shared by all families.
type Action string

// ActionUnknown is returned by the parser when the model could not map the
// message onto any action in the family's set.
const ActionUnknown Action = "unknown"

// ParsedCommand is the structured, machine-actionable translation of a
// free-text request. It is created once by the action parser and must be
// treated as immutable afterwards: when a gated command round-trips through
// the caller for confirmation, the exact same object is replayed, never a
// fresh parse of the original text.
type ParsedCommand struct {
	// Handler is the id of the handler family the command belongs to.
	Handler string `json:"handler"`

	// Action is the family action key, or ActionUnknown.
	Action Action `json:"action"`

	// Parameters holds the action's arguments as decoded from the model's
	// JSON output and validated against the action's schema.
	Parameters map[string]any `json:"parameters"`

	// ConfirmationRequired is set by the parser when the action mutates
	// external state. It is advisory input to the confirmation gate, which
	// also consults the family's static mutating-action set.
	ConfirmationRequired bool `json:"confirmationRequired"`

	// UserInput is the original message text, preserved verbatim.
	UserInput string `json:"userInput"`

	// ResolvedTargets optionally lists disambiguated target identifiers
	// (e.g. the document id "that file" was resolved to).
	ResolvedTargets []string `json:"resolvedTargets,omitempty"`
}

// Clone returns a deep copy of the command. The gate hands clones to
// handlers so a misbehaving executor cannot mutate the record that is
// appended to history.
func (c *ParsedCommand) Clone() *ParsedCommand {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Parameters != nil {
		cp.Parameters = make(map[string]any, len(c.Parameters))
		for k, v := range c.Parameters {
			cp.Parameters[k] = v
		}
	}
	if c.ResolvedTargets != nil {
		cp.ResolvedTargets = append([]string(nil), c.ResolvedTargets...)
	}
	return &cp
}

// StringParam returns the named parameter as a string, with ok reporting
// whether it was present and a string.
func (c *ParsedCommand) StringParam(name string) (string, bool) {
	v, ok := c.Parameters[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ParseContext is the ambient context injected into every action parser
// call so the model can resolve dates, pronouns, and first-person
// references without a second round-trip.
type ParseContext struct {
	// Principal is the authenticated user id issuing the command.
	Principal string

	// Today is the current date, formatted for the prompt (e.g. "2026-08-25").
	Today string

	// LastEntry is the most recent history entry for the principal, or nil.
	// Used to resolve "it" / "that file" to the last touched item.
	LastEntry *HistoryEntry
}

// ExecContext is what the pipeline exposes to handlers at execution time.
type ExecContext struct {
	// Principal is the authenticated user id the command runs as.
	Principal string

	// LastEntry is the most recent history entry for the principal, or nil.
	LastEntry *HistoryEntry
}

// HistoryEntry records one successfully executed mutating command.
type HistoryEntry struct {
	Command   *ParsedCommand `json:"command"`
	Response  *HandlerResult `json:"response"`
	Timestamp time.Time      `json:"timestamp"`
}

// MarshalCompact returns the command as single-line JSON, used when echoing
// a gated command back to the caller inside a confirmation prompt.
func (c *ParsedCommand) MarshalCompact() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}
