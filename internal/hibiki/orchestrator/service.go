package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hibiki-ai/hibiki/common/trace"
	"github.com/hibiki-ai/hibiki/internal/hibiki/history"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
	"github.com/hibiki-ai/hibiki/internal/hibiki/stream"
)

// Mode selects the delivery mode of one request's event stream.
type Mode string

const (
	// ModeProgress pushes named thinking steps as the pipeline advances.
	ModeProgress Mode = "progress"

	// ModeCharacter holds the full response back and replays it as paced
	// character chunks.
	ModeCharacter Mode = "character"
)

// AuditEntry is one pipeline outcome handed to the audit sink.
type AuditEntry struct {
	Principal  string
	SessionID  string
	TraceID    string
	Command    string
	Strategy   string
	Action     string
	ResultType string
	AgentError string
	Timestamp  time.Time
}

// AuditSink persists and/or announces pipeline outcomes. Satisfied by the
// store's audit log and by the Matrix notifier.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
}

// MessageStore persists the user/assistant exchange of one completed
// request and returns the stored records for the final_response event.
type MessageStore interface {
	SaveExchange(ctx context.Context, sessionID, principal, userText, assistantText string) ([]stream.Message, error)
}

// Router produces a routing decision for one message. Satisfied by
// nlp.Router.
type Router interface {
	Route(ctx context.Context, message, model string) *pipeline.RoutingDecision
}

// Service is the end-to-end pipeline: admission control, routing, parsing,
// gating, execution, persistence, and event delivery for one request.
type Service struct {
	router  Router
	orch    *Orchestrator
	history history.Log
	limiter *nlp.RateLimiter
	budget  *nlp.TokenBudget
	audit   AuditSink
	msgs    MessageStore
}

// NewService wires a Service. audit and msgs may be nil, disabling the
// corresponding persistence.
func NewService(router Router, orch *Orchestrator, hist history.Log, limiter *nlp.RateLimiter, budget *nlp.TokenBudget, audit AuditSink, msgs MessageStore) *Service {
	return &Service{
		router:  router,
		orch:    orch,
		history: hist,
		limiter: limiter,
		budget:  budget,
		audit:   audit,
		msgs:    msgs,
	}
}

// ProcessRequest is one inbound command submission.
type ProcessRequest struct {
	Principal string
	SessionID string
	Command   string
	Model     string
	Mode      Mode
	Speed     stream.Speed

	// Confirmed with a non-nil ParsedCommand replays a previously gated
	// command, skipping classification and parsing entirely.
	Confirmed     bool
	ParsedCommand *pipeline.ParsedCommand
}

// Process runs one request to completion, emitting events on ch and
// closing it when done.
//
// The transport ctx governs delivery pacing only: once execution starts,
// the pipeline runs on a detached context so external side effects and
// persistence complete even when the client goes away mid-stream.
func (s *Service) Process(ctx context.Context, req ProcessRequest, ch *stream.Channel) {
	defer ch.Close()

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.Mode == "" {
		req.Mode = ModeProgress
	}
	if req.Mode == ModeProgress {
		ch.Send(stream.Event{Type: stream.EventConnected, SessionID: req.SessionID})
	}

	if !s.limiter.Allow(req.Principal) {
		ch.Send(stream.Event{Type: stream.EventError,
			Error: "You're sending requests too quickly. Please wait a moment and try again."})
		return
	}
	if !s.budget.Allow(req.Principal) {
		ch.Send(stream.Event{Type: stream.EventError,
			Error: "You've used up today's assistant budget. It resets at midnight UTC."})
		return
	}

	// Execution must outlive the transport.
	execCtx := nlp.WithPrincipal(context.WithoutCancel(ctx), req.Principal)

	res := s.run(execCtx, req, ch)

	messages := s.persist(execCtx, req, res)
	s.deliver(ctx, req, res, messages, ch)
}

// run drives routing, gating, and execution, emitting thinking steps in
// progress mode.
func (s *Service) run(ctx context.Context, req ProcessRequest, ch *stream.Channel) *pipeline.HandlerResult {
	var em *stream.StepEmitter
	if req.Mode == ModeProgress {
		em = stream.NewStepEmitter(ch)
	}

	last := s.history.Last(req.Principal)
	oreq := Request{
		Message:   req.Command,
		Model:     req.Model,
		Confirmed: req.Confirmed,
		ParseCtx: pipeline.ParseContext{
			Principal: req.Principal,
			Today:     time.Now().Format("2006-01-02"),
			LastEntry: last,
		},
		ExecCtx: pipeline.ExecContext{
			Principal: req.Principal,
			LastEntry: last,
		},
	}

	// Replay path: the caller confirmed a previously gated command. The
	// exact object goes straight to the gate; the text is never re-parsed.
	if req.Confirmed && req.ParsedCommand != nil {
		step := begin(em, stream.StepAgentExecution,
			"Running the confirmed command", string(req.ParsedCommand.Action))
		res := s.orch.ExecuteParsed(ctx, req.ParsedCommand, true, oreq)
		finish(em, step, res)
		return res
	}

	step := begin(em, stream.StepIntentAnalysis, "Understanding your request", "")
	decision := s.router.Route(ctx, req.Command, req.Model)
	complete(em, step, map[string]any{
		"strategy":   string(decision.Strategy),
		"confidence": decision.Confidence,
	})
	oreq.Decision = decision

	if decision.Strategy != pipeline.StrategySimple {
		sel := begin(em, stream.StepAgentSelection, "Choosing the right tool", "")
		meta := map[string]any{}
		if decision.HandlerID != "" {
			meta["handler"] = decision.HandlerID
		}
		if len(decision.HandlerChain) > 0 {
			meta["handlerChain"] = decision.HandlerChain
		}
		complete(em, sel, meta)
	}

	exec := begin(em, stream.StepAgentExecution, "Working on it", "")
	res := s.orch.Execute(ctx, oreq)
	finish(em, exec, res)

	gen := begin(em, stream.StepResponseGeneration, "Writing the response", "")
	complete(em, gen, nil)
	return res
}

// persist writes the exchange and the audit record. Failures are logged
// and never affect the result the user sees.
func (s *Service) persist(ctx context.Context, req ProcessRequest, res *pipeline.HandlerResult) []stream.Message {
	var messages []stream.Message
	if s.msgs != nil {
		var err error
		messages, err = s.msgs.SaveExchange(ctx, req.SessionID, req.Principal, req.Command, res.Content)
		if err != nil {
			slog.Error("pipeline: persist exchange failed", "session", req.SessionID, "err", err)
		}
	}
	if s.audit != nil {
		entry := AuditEntry{
			Principal:  req.Principal,
			SessionID:  req.SessionID,
			TraceID:    trace.FromContext(ctx),
			Command:    req.Command,
			Strategy:   res.Metadata.Strategy,
			Action:     string(res.Metadata.Action),
			ResultType: string(res.Type),
			AgentError: res.Metadata.AgentError,
			Timestamp:  time.Now(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			slog.Error("pipeline: audit record failed", "session", req.SessionID, "err", err)
		}
	}
	return messages
}

// deliver pushes the final frames per the requested mode. The transport
// ctx only affects pacing; every frame is still sent so a draining
// consumer receives the complete content.
func (s *Service) deliver(ctx context.Context, req ProcessRequest, res *pipeline.HandlerResult, messages []stream.Message, ch *stream.Channel) {
	if req.Mode == ModeCharacter {
		pacer := stream.NewPacer(req.Speed)
		pacer.Stream(ctx, ch, res.Content)
	}
	ch.Send(stream.Event{
		Type:     stream.EventFinalResponse,
		Result:   res,
		Messages: messages,
	})
}

// begin, complete, and finish tolerate a nil emitter so character mode
// can share the run path without step frames.

func begin(em *stream.StepEmitter, t stream.StepType, title, desc string) *stream.ThinkingStep {
	if em == nil {
		return nil
	}
	return em.Begin(t, title, desc)
}

func complete(em *stream.StepEmitter, step *stream.ThinkingStep, meta map[string]any) {
	if em == nil || step == nil {
		return
	}
	em.Complete(step, meta)
}

// finish closes an execution step according to the result: a degraded or
// failed outcome marks the step errored so the caller sees where the
// pipeline went off the happy path.
func finish(em *stream.StepEmitter, step *stream.ThinkingStep, res *pipeline.HandlerResult) {
	if em == nil || step == nil {
		return
	}
	switch {
	case res.Type == pipeline.ResultError:
		em.Fail(step, res.Error)
	case res.Metadata.AgentError != "":
		em.Fail(step, res.Metadata.AgentError)
	default:
		em.Complete(step, map[string]any{"resultType": string(res.Type)})
	}
}
