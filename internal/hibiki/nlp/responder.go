package nlp

import (
	"context"
	"fmt"
	"strings"
)

// Responder is the general-purpose answer generator behind the simple
// strategy, the fallback path, and the chain-combination call.
type Responder struct {
	provider Provider
}

// NewResponder creates a Responder over the given provider.
func NewResponder(provider Provider) *Responder {
	return &Responder{provider: provider}
}

// Respond answers message directly, with no handler involved.
func (r *Responder) Respond(ctx context.Context, message, model string) (string, error) {
	comp, err := r.provider.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    responderPrompt,
		User:      message,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("responder: %w", err)
	}
	return strings.TrimSpace(comp.Content), nil
}

// Combine merges the ordered outputs of a handler chain into one coherent
// answer to the original request.
func (r *Responder) Combine(ctx context.Context, original string, outputs []string, model string) (string, error) {
	var user strings.Builder
	for i, out := range outputs {
		fmt.Fprintf(&user, "Tool %d output:\n%s\n\n", i+1, out)
	}
	comp, err := r.provider.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    fmt.Sprintf(combinerPromptTmpl, original),
		User:      strings.TrimSpace(user.String()),
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("combiner: %w", err)
	}
	return strings.TrimSpace(comp.Content), nil
}
