package pipeline

// Strategy is the coarse routing decision made once per inbound message.
type Strategy string

const (
	// StrategySimple sends the message straight to the general-purpose
	// responder with no handler involved.
	StrategySimple Strategy = "simple"

	// StrategySingleHandler routes the message to exactly one handler
	// family for structured parsing and execution.
	StrategySingleHandler Strategy = "single_handler"

	// StrategyHandlerChain runs two or more handlers in order, feeding
	// each handler's output into the next.
	StrategyHandlerChain Strategy = "handler_chain"
)

// ConfidenceThreshold is the minimum classifier confidence (0–100) required
// to route a message to a handler. Anything below it is forced to
// StrategySimple regardless of the suggested handler id.
const ConfidenceThreshold = 70

// RoutingDecision is produced once per inbound message by the strategy
// router and discarded after the request completes.
type RoutingDecision struct {
	// Strategy is the selected handling path.
	Strategy Strategy `json:"strategy"`

	// HandlerID is the selected handler family id when Strategy is
	// StrategySingleHandler; empty otherwise.
	HandlerID string `json:"handlerId,omitempty"`

	// HandlerChain lists the handler family ids, in execution order, when
	// Strategy is StrategyHandlerChain; nil otherwise.
	HandlerChain []string `json:"handlerChain,omitempty"`

	// Confidence is the classifier's certainty, 0–100.
	Confidence int `json:"confidence"`

	// Reasoning is the classifier's one-line justification, kept for logs.
	Reasoning string `json:"reasoning,omitempty"`

	// IsSimpleQuery reports that the classifier saw a general question
	// with no service interaction, which forces StrategySimple.
	IsSimpleQuery bool `json:"isSimpleQuery"`

	// Complexity is the classifier's free-form complexity label
	// ("low", "medium", "high"); informational only.
	Complexity string `json:"complexity,omitempty"`
}

// SimpleDecision is the fail-safe decision used whenever classification
// fails or produces something unusable. The router must degrade to this
// rather than propagate a classifier failure to the caller.
func SimpleDecision() *RoutingDecision {
	return &RoutingDecision{
		Strategy:   StrategySimple,
		Confidence: 100,
		Reasoning:  "classifier unavailable or output unusable; defaulting to simple response",
	}
}
