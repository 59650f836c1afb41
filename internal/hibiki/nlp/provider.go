// Package nlp provides the language-model layer of the Hibiki pipeline:
// the strategy router that classifies an inbound message, the generic
// action parser that translates free text into a ParsedCommand for one
// handler family, and the general-purpose responder used for simple
// queries, fallbacks, and chain combination.
//
// Invariants enforced by this layer:
//   - The model only proposes commands; it never executes them. Every
//     mutating action still flows through the confirmation gate and audit.
//   - Classifier failures never surface to the caller: routing degrades
//     to the simple strategy instead.
//   - Parse failures surface immediately as an error result; the model
//     call is never retried automatically.
//   - Rate limiting and daily token budgets bound spend per principal.
package nlp

import (
	"context"
	"errors"
)

// ErrRateLimit is returned by a Provider when the upstream API reports a
// rate-limiting condition (HTTP 429). Callers surface a user-visible
// message rather than treating it as an internal failure.
var ErrRateLimit = errors.New("nlp: upstream rate limit exceeded")

// ErrMalformedOutput is returned when the model's response body cannot be
// interpreted as the expected JSON shape after fence stripping.
var ErrMalformedOutput = errors.New("nlp: malformed response from model")

// TokenUsage carries the token counts reported by the upstream API for a
// single call. Fields are zero-valued when the provider does not report
// usage (e.g. stub implementations in tests).
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Model is the model name echoed back by the provider, when available.
	Model string
	// LatencyMS is the observed HTTP round-trip time in milliseconds.
	LatencyMS int64
}

// CompletionRequest is the input to a single model call.
type CompletionRequest struct {
	// Model overrides the provider's default chat model when non-empty.
	// The transport passes the caller's handlerModelId through here.
	Model string

	// System is the instruction block sent as the system message.
	System string

	// User is the user-turn content.
	User string

	// JSONMode requests a guaranteed-JSON response body from providers
	// that support it. Callers must still strip markdown fences before
	// parsing, since some models fence their output regardless.
	JSONMode bool

	// MaxTokens caps the response length; 0 uses the provider default.
	MaxTokens int
}

// Completion is the output of a single model call.
type Completion struct {
	// Content is the raw response text.
	Content string

	// Usage holds token accounting for budget enforcement; may be nil.
	Usage *TokenUsage
}

// Provider is the single seam to the external language model. One
// implementation backs the router, the action parsers, and the responder.
//
// Implementations must be safe for concurrent use from multiple
// goroutines and must eventually resolve or return an error; timeouts
// are the provider's concern, not the pipeline's.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
