package nlp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// Router classifies an inbound message into a handling strategy with one
// external classifier call plus static threshold rules.
//
// The router never fails: every code path that cannot produce a usable
// handler decision (classifier error, malformed JSON, unknown handler id,
// low confidence) degrades to the simple strategy so the caller always
// gets an answer.
type Router struct {
	provider Provider
	catalog  *catalog.Catalog
}

// NewRouter creates a Router over the given provider and handler catalogue.
func NewRouter(provider Provider, cat *catalog.Catalog) *Router {
	return &Router{provider: provider, catalog: cat}
}

// routerOutput is the classifier's raw JSON shape before validation.
type routerOutput struct {
	Strategy      string   `json:"strategy"`
	HandlerID     string   `json:"handlerId"`
	HandlerChain  []string `json:"handlerChain"`
	Confidence    int      `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	IsSimpleQuery bool     `json:"isSimpleQuery"`
	Complexity    string   `json:"complexity"`
}

// Route produces the RoutingDecision for one inbound message.
//
// model optionally overrides the provider's default classifier model (the
// transport passes the caller's handlerModelId through).
func (r *Router) Route(ctx context.Context, message, model string) *pipeline.RoutingDecision {
	comp, err := r.provider.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    buildRouterPrompt(r.catalog),
		User:      message,
		JSONMode:  true,
		MaxTokens: 256,
	})
	if err != nil {
		slog.Warn("router: classifier call failed; defaulting to simple", "err", err)
		return pipeline.SimpleDecision()
	}

	var out routerOutput
	if err := json.Unmarshal([]byte(StripFences(comp.Content)), &out); err != nil {
		slog.Warn("router: classifier output unparseable; defaulting to simple", "err", err)
		return pipeline.SimpleDecision()
	}

	return r.applyRules(&out)
}

// applyRules converts the raw classifier output into a validated decision.
//
// Threshold policy:
//   - confidence < ConfidenceThreshold or isSimpleQuery → simple, always.
//   - single_handler requires a handler id registered in the catalogue.
//   - handler_chain requires ≥ 2 registered handler ids; a one-element
//     chain collapses to single_handler.
func (r *Router) applyRules(out *routerOutput) *pipeline.RoutingDecision {
	decision := &pipeline.RoutingDecision{
		Strategy:      pipeline.Strategy(out.Strategy),
		HandlerID:     out.HandlerID,
		HandlerChain:  out.HandlerChain,
		Confidence:    out.Confidence,
		Reasoning:     out.Reasoning,
		IsSimpleQuery: out.IsSimpleQuery,
		Complexity:    out.Complexity,
	}

	if out.IsSimpleQuery || out.Confidence < pipeline.ConfidenceThreshold {
		decision.Strategy = pipeline.StrategySimple
		decision.HandlerID = ""
		decision.HandlerChain = nil
		return decision
	}

	switch decision.Strategy {
	case pipeline.StrategySingleHandler:
		if _, ok := r.catalog.Family(decision.HandlerID); !ok {
			slog.Warn("router: classifier proposed unknown handler; defaulting to simple",
				"handler", decision.HandlerID)
			return pipeline.SimpleDecision()
		}
		decision.HandlerChain = nil
		return decision

	case pipeline.StrategyHandlerChain:
		for _, id := range decision.HandlerChain {
			if _, ok := r.catalog.Family(id); !ok {
				slog.Warn("router: chain contains unknown handler; defaulting to simple",
					"handler", id)
				return pipeline.SimpleDecision()
			}
		}
		switch len(decision.HandlerChain) {
		case 0:
			return pipeline.SimpleDecision()
		case 1:
			decision.Strategy = pipeline.StrategySingleHandler
			decision.HandlerID = decision.HandlerChain[0]
			decision.HandlerChain = nil
		}
		return decision

	case pipeline.StrategySimple:
		decision.HandlerID = ""
		decision.HandlerChain = nil
		return decision

	default:
		slog.Warn("router: classifier proposed unknown strategy; defaulting to simple",
			"strategy", out.Strategy)
		return pipeline.SimpleDecision()
	}
}
