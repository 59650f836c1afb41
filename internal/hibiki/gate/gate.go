// Package gate implements the confirmation checkpoint that prevents
// mutating commands from executing without explicit caller approval of the
// exact parsed action.
//
// A command moves through the states
//
//	Parsed → NeedsConfirmation → AwaitingConfirmation → Executed
//
// or takes the short path Parsed → Executed when nothing gates it. The
// gate itself is stateless between requests: the AwaitingConfirmation leg
// round-trips through the caller, who resubmits the echoed ParsedCommand
// with confirmed=true. Re-parsing the original text at that point is
// forbidden: intervening context could change the resolved action after
// the user already approved a specific one.
package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// State is a position in the confirmation lifecycle.
type State string

const (
	// StateParsed is the entry state for every freshly parsed command.
	StateParsed State = "parsed"

	// StateNeedsConfirmation means the command was found to be gated.
	StateNeedsConfirmation State = "needs_confirmation"

	// StateAwaitingConfirmation means the confirmation prompt has been
	// handed back to the caller and the pipeline has halted with no side
	// effect.
	StateAwaitingConfirmation State = "awaiting_confirmation"

	// StateExecuted is terminal: the command reached the orchestrator.
	// Handler-level errors are terminal too; a retry is always a new,
	// user-initiated command.
	StateExecuted State = "executed"
)

// Decision is the gate's verdict for one command.
type Decision struct {
	// State is where the command ended up. StateAwaitingConfirmation means
	// the caller must round-trip; StateExecuted means execution may begin.
	State State

	// Proceed is true when the pipeline may hand the command to the
	// orchestrator now.
	Proceed bool

	// Prompt is the confirmation question for the caller, set only when
	// Proceed is false.
	Prompt string
}

// Gate decides whether a parsed command may execute immediately or must
// round-trip for explicit confirmation.
type Gate struct {
	catalog *catalog.Catalog
}

// New creates a Gate over the handler catalogue.
func New(cat *catalog.Catalog) *Gate {
	return &Gate{catalog: cat}
}

// IsGated reports whether cmd requires confirmation. The condition is a
// union: the action being in the family's static mutating set OR the
// parser having flagged confirmationRequired; either signal alone is
// sufficient.
func (g *Gate) IsGated(cmd *pipeline.ParsedCommand) bool {
	if cmd.ConfirmationRequired {
		return true
	}
	fam, ok := g.catalog.Family(cmd.Handler)
	if !ok {
		return false
	}
	return fam.IsMutating(cmd.Action)
}

// Check runs the state machine for cmd. confirmed reports whether the
// caller supplied an explicit confirmed=true alongside the command.
//
// When the command is gated and unconfirmed, the pipeline must halt and
// return a confirmation_required result built from Decision.Prompt, with no
// external side effect and no history entry may occur. When confirmed (or
// not gated at all), execution proceeds with the exact ParsedCommand;
// confirming twice performs two independent executions; the gate never
// deduplicates.
func (g *Gate) Check(cmd *pipeline.ParsedCommand, confirmed bool) Decision {
	if !g.IsGated(cmd) || confirmed {
		return Decision{State: StateExecuted, Proceed: true}
	}
	return Decision{
		State:   StateAwaitingConfirmation,
		Proceed: false,
		Prompt:  g.buildPrompt(cmd),
	}
}

// buildPrompt renders the plain-language confirmation question for cmd.
func (g *Gate) buildPrompt(cmd *pipeline.ParsedCommand) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This will run **%s**", cmd.Action)
	if fam, ok := g.catalog.Family(cmd.Handler); ok {
		if spec, ok := fam.Action(cmd.Action); ok && spec.Summary != "" {
			fmt.Fprintf(&sb, " (%s)", spec.Summary)
		}
	}
	if params := describeParams(cmd.Parameters); params != "" {
		fmt.Fprintf(&sb, " with %s", params)
	}
	sb.WriteString(". Reply with confirmed=true to proceed, or change your request to cancel.")
	return sb.String()
}

// describeParams renders the parameter map as "key \"value\"" pairs in
// stable key order so prompts (and tests) are deterministic.
func describeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %q", k, fmt.Sprint(params[k])))
	}
	return strings.Join(parts, ", ")
}
