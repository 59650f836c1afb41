// Package agents implements the handler families the strategy router can
// select: docs (document store), repo (source-control host), and drive
// (file drive).
//
// Each family shares one skeleton: a natural-language entry point
// delegating to the generic action parser, a credential check translating
// a missing token into an authorization_required result, schema
// re-validation of the (possibly replayed) command, and a switch mapping
// each action in the family's closed set onto its black-box connector.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// Agent is a pluggable unit executing one family of structured actions
// against an external system.
type Agent interface {
	// ID is the handler id the router selects by.
	ID() string

	// Parse translates free text into a ParsedCommand for this family.
	Parse(ctx context.Context, text, model string, pctx pipeline.ParseContext) (*pipeline.ParsedCommand, error)

	// Execute runs a parsed command. Execution failures are returned as
	// errors so the orchestrator can apply its fallback policy; expected
	// non-success outcomes (authorization required, validation failure,
	// unmappable action) come back as results.
	Execute(ctx context.Context, cmd *pipeline.ParsedCommand, ectx pipeline.ExecContext) (*pipeline.HandlerResult, error)
}

// Registry holds the available agents keyed by handler id.
type Registry struct {
	agents map[string]Agent
	ids    []string
}

// NewRegistry creates a Registry from the given agents.
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.ID()] = a
		r.ids = append(r.ids, a.ID())
	}
	sort.Strings(r.ids)
	return r
}

// Get returns the agent with the given handler id.
func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns the registered handler ids, sorted.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// base carries the parts every family agent shares.
type base struct {
	fam    *catalog.Family
	parser *nlp.Parser
	creds  credentials.Store
	// authURL is the base URL users visit to connect the family's service.
	authURL string
}

// ID implements Agent.
func (b *base) ID() string { return b.fam.ID }

// Parse implements Agent by delegating to the generic action parser with
// this family's instruction template and vocabulary.
func (b *base) Parse(ctx context.Context, text, model string, pctx pipeline.ParseContext) (*pipeline.ParsedCommand, error) {
	return b.parser.Parse(ctx, b.fam, text, model, pctx)
}

// preflight runs the checks shared by every family before the action
// switch: unknown-action reporting, the undo report, credential presence,
// and schema re-validation of the (possibly caller-replayed) parameters.
//
// It returns a non-nil result when the command is fully answered without
// touching the connector.
func (b *base) preflight(ctx context.Context, cmd *pipeline.ParsedCommand, ectx pipeline.ExecContext) (*pipeline.HandlerResult, error) {
	switch cmd.Action {
	case pipeline.ActionUnknown:
		return pipeline.ErrorResult(cmd.Action, fmt.Sprintf(
			"I couldn't map that onto a %s action. Try rephrasing, e.g. %q.",
			b.fam.ID, exampleFor(b.fam))), nil

	case actionUndoLast:
		return b.undoReport(ectx), nil
	}

	// Replayed commands arrive from the caller, not from the parser, so
	// the schema check runs again here. A violation is a user-facing
	// validation error naming the field, not an execution failure.
	if err := b.fam.ValidateParams(cmd.Action, cmd.Parameters); err != nil {
		return pipeline.ErrorResult(cmd.Action, err.Error()), nil
	}

	if _, err := b.creds.Get(ctx, ectx.Principal, b.fam.Service); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return pipeline.AuthorizationResult(b.fam.ID, b.connectURL()), nil
		}
		return nil, fmt.Errorf("%s: read credential: %w", b.fam.ID, err)
	}

	return nil, nil
}

// actionUndoLast is accepted by every family. Its effect is deliberately a
// report, not a reversal: the pipeline does not know how to invert an
// arbitrary external mutation, so it tells the user what the last mutating
// command was instead of pretending to take it back.
const actionUndoLast pipeline.Action = "undo_last"

// undoReport describes the principal's last recorded mutating command.
func (b *base) undoReport(ectx pipeline.ExecContext) *pipeline.HandlerResult {
	e := ectx.LastEntry
	if e == nil || e.Command == nil {
		return pipeline.OKResult(actionUndoLast,
			"There is no recorded action to undo.")
	}
	return pipeline.OKResult(actionUndoLast, fmt.Sprintf(
		"The last recorded action was %s via %s (%s). Automatic reversal is not supported; "+
			"if you want it undone, tell me explicitly what to change.",
		e.Command.Action, e.Command.Handler, describeCommand(e.Command)))
}

// connectURL builds the authorization URL surfaced to the user when no
// credential is stored for the family's service.
func (b *base) connectURL() string {
	return b.authURL + "?service=" + b.fam.Service
}

// describeCommand renders a command's parameters for the undo report.
func describeCommand(cmd *pipeline.ParsedCommand) string {
	if len(cmd.Parameters) == 0 {
		return "no parameters"
	}
	keys := make([]string, 0, len(cmd.Parameters))
	for k := range cmd.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, cmd.Parameters[k]))
	}
	return strings.Join(parts, ", ")
}

// exampleFor suggests a concrete phrasing per family for the
// unknown-action message.
func exampleFor(fam *catalog.Family) string {
	switch fam.ID {
	case "docs":
		return "create a document called Weekly Notes"
	case "repo":
		return "list open issues in my api repo"
	case "drive":
		return "delete the file named draft.txt"
	default:
		return "list my items"
	}
}

// formatItems renders a connector item list as a bulleted block.
func formatItems(header string, items []Item) string {
	if len(items) == 0 {
		return header + "\n(nothing found)"
	}
	var sb strings.Builder
	sb.WriteString(header)
	for _, it := range items {
		sb.WriteString("\n- ")
		sb.WriteString(it.Name)
		if it.URL != "" {
			sb.WriteString(" (")
			sb.WriteString(it.URL)
			sb.WriteString(")")
		}
	}
	return sb.String()
}
