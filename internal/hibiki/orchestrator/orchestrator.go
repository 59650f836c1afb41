// Package orchestrator executes routing decisions: it invokes the selected
// handler(s), applies the fallback-to-simple policy on handler failure,
// chains handler outputs when the router asked for a chain, and appends
// successful mutating commands to history.
//
// The caller always receives a non-error, user-presentable result except
// when even the fallback responder call itself fails. A degraded answer is
// marked with metadata.strategy = "simple_fallback" and carries the
// original handler error under metadata.agentError so call sites cannot
// mistake it for a handler success.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiki-ai/hibiki/internal/hibiki/agents"
	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/gate"
	"github.com/hibiki-ai/hibiki/internal/hibiki/history"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// Responder is the general-purpose answer generator the orchestrator
// degrades to. Satisfied by nlp.Responder.
type Responder interface {
	Respond(ctx context.Context, message, model string) (string, error)
	Combine(ctx context.Context, original string, outputs []string, model string) (string, error)
}

// Orchestrator runs one routing decision to completion.
type Orchestrator struct {
	registry  *agents.Registry
	responder Responder
	gate      *gate.Gate
	catalog   *catalog.Catalog
	history   history.Log
}

// New wires an Orchestrator.
func New(reg *agents.Registry, responder Responder, g *gate.Gate, cat *catalog.Catalog, hist history.Log) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		responder: responder,
		gate:      g,
		catalog:   cat,
		history:   hist,
	}
}

// Request is one orchestration run.
type Request struct {
	// Message is the original user text, preserved verbatim.
	Message string

	// Model optionally overrides the provider's default model.
	Model string

	// Confirmed reports that the caller explicitly approved a gated
	// command on a previous round-trip.
	Confirmed bool

	// Decision is the router's verdict for Message.
	Decision *pipeline.RoutingDecision

	// ParseCtx and ExecCtx carry the principal and history context.
	ParseCtx pipeline.ParseContext
	ExecCtx  pipeline.ExecContext
}

// Execute runs req per its routing decision and returns the single result
// the caller sees.
func (o *Orchestrator) Execute(ctx context.Context, req Request) *pipeline.HandlerResult {
	switch req.Decision.Strategy {
	case pipeline.StrategySingleHandler:
		return o.runSingle(ctx, req)
	case pipeline.StrategyHandlerChain:
		return o.runChain(ctx, req)
	default:
		return o.runSimple(ctx, req.Message, req.Model, string(pipeline.StrategySimple))
	}
}

// ExecuteParsed runs an already-parsed command through the gate and the
// owning agent. It is the replay entry point for confirmed commands: the
// command is executed exactly as supplied, never re-parsed from text.
func (o *Orchestrator) ExecuteParsed(ctx context.Context, cmd *pipeline.ParsedCommand, confirmed bool, req Request) *pipeline.HandlerResult {
	decision := o.gate.Check(cmd, confirmed)
	if !decision.Proceed {
		res := pipeline.ConfirmationResult(cmd, decision.Prompt)
		res.Metadata.Strategy = string(pipeline.StrategySingleHandler)
		return res
	}

	agent, ok := o.registry.Get(cmd.Handler)
	if !ok {
		return o.fallback(ctx, req, cmd.Action, fmt.Errorf("no agent registered for handler %q", cmd.Handler))
	}

	res, err := agent.Execute(ctx, cmd.Clone(), req.ExecCtx)
	if err != nil {
		slog.Error("orchestrator: handler execution failed",
			"handler", cmd.Handler, "action", cmd.Action, "err", err)
		return o.fallback(ctx, req, cmd.Action, err)
	}

	if res.Metadata.Strategy == "" {
		res.Metadata.Strategy = string(pipeline.StrategySingleHandler)
	}
	o.record(req.ExecCtx.Principal, cmd, res)
	return res
}

// runSimple delegates straight to the general-purpose responder.
func (o *Orchestrator) runSimple(ctx context.Context, message, model, strategy string) *pipeline.HandlerResult {
	content, err := o.responder.Respond(ctx, message, model)
	if err != nil {
		slog.Error("orchestrator: responder failed", "err", err)
		return pipeline.ErrorResult("", "Sorry, I couldn't produce a response right now. Please try again.")
	}
	res := pipeline.OKResult("", content)
	res.Metadata.Strategy = strategy
	return res
}

// runSingle parses the message with the selected agent and executes the
// result.
func (o *Orchestrator) runSingle(ctx context.Context, req Request) *pipeline.HandlerResult {
	agent, ok := o.registry.Get(req.Decision.HandlerID)
	if !ok {
		return o.fallback(ctx, req, "", fmt.Errorf("no agent registered for handler %q", req.Decision.HandlerID))
	}

	cmd, err := agent.Parse(ctx, req.Message, req.Model, req.ParseCtx)
	if err != nil {
		if errors.Is(err, nlp.ErrMalformedOutput) {
			slog.Warn("orchestrator: parse produced malformed output",
				"handler", req.Decision.HandlerID, "err", err)
			return pipeline.ErrorResult("",
				"Sorry, I couldn't interpret that as a command. Please rephrase it.")
		}
		slog.Error("orchestrator: parse failed",
			"handler", req.Decision.HandlerID, "err", err)
		return o.fallback(ctx, req, "", err)
	}

	return o.ExecuteParsed(ctx, cmd, req.Confirmed, req)
}

// runChain runs the chain's handlers in order, feeding each output into
// the next input, then combines all outputs with one more model call.
func (o *Orchestrator) runChain(ctx context.Context, req Request) *pipeline.HandlerResult {
	var outputs []string
	var lastErr error
	input := req.Message

	for _, id := range req.Decision.HandlerChain {
		agent, ok := o.registry.Get(id)
		if !ok {
			lastErr = fmt.Errorf("no agent registered for handler %q", id)
			slog.Error("orchestrator: chain link missing", "handler", id)
			input = req.Message
			continue
		}

		cmd, err := agent.Parse(ctx, input, req.Model, req.ParseCtx)
		if err != nil {
			lastErr = err
			slog.Error("orchestrator: chain parse failed", "handler", id, "err", err)
			input = req.Message
			continue
		}

		if decision := o.gate.Check(cmd, req.Confirmed); !decision.Proceed {
			// A gated command halts the chain; on confirmation the replay
			// executes just this command.
			res := pipeline.ConfirmationResult(cmd, decision.Prompt)
			res.Metadata.Strategy = string(pipeline.StrategyHandlerChain)
			return res
		}

		res, err := agent.Execute(ctx, cmd.Clone(), req.ExecCtx)
		if err != nil {
			lastErr = err
			slog.Error("orchestrator: chain execution failed",
				"handler", id, "action", cmd.Action, "err", err)
			input = req.Message
			continue
		}
		if res.Type == pipeline.ResultAuthorizationRequired {
			return res
		}

		o.record(req.ExecCtx.Principal, cmd, res)
		outputs = append(outputs, res.Content)
		input = fmt.Sprintf("Previous result: %s\n\nOriginal request: %s", res.Content, req.Message)
	}

	if len(outputs) == 0 {
		if lastErr == nil {
			lastErr = errors.New("empty handler chain")
		}
		return o.fallback(ctx, req, "", lastErr)
	}

	combined, err := o.responder.Combine(ctx, req.Message, outputs, req.Model)
	if err != nil {
		slog.Warn("orchestrator: chain combination failed; joining outputs", "err", err)
		combined = strings.Join(outputs, "\n\n")
	}

	res := pipeline.OKResult("", combined)
	res.Metadata.Strategy = string(pipeline.StrategyHandlerChain)
	return res
}

// fallback answers with the general responder after a handler failed. The
// result is OK-typed and carries the original error under agentError; only
// a failure of the fallback itself produces a top-level error result.
func (o *Orchestrator) fallback(ctx context.Context, req Request, action pipeline.Action, cause error) *pipeline.HandlerResult {
	content, err := o.responder.Respond(ctx, req.Message, req.Model)
	if err != nil {
		slog.Error("orchestrator: fallback responder failed", "err", err, "cause", cause)
		return pipeline.ErrorResult(action,
			"Sorry, I couldn't handle that request right now. Please try again.")
	}

	res := pipeline.OKResult(action, content)
	res.Metadata.Strategy = "simple_fallback"
	res.Metadata.AgentError = cause.Error()
	return res
}

// record appends cmd to the principal's history when its external effect
// succeeded and the action is mutating. Non-mutating and failed commands
// leave no trace.
func (o *Orchestrator) record(principal string, cmd *pipeline.ParsedCommand, res *pipeline.HandlerResult) {
	if !res.Metadata.Success {
		return
	}
	fam, ok := o.catalog.Family(cmd.Handler)
	if !ok || !fam.IsMutating(cmd.Action) {
		return
	}
	o.history.Append(principal, pipeline.HistoryEntry{Command: cmd, Response: res})
}
