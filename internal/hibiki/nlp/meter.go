package nlp

import "context"

type principalKey struct{}

// WithPrincipal tags ctx with the principal on whose behalf subsequent
// model calls are made, so the metered provider can attribute usage.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal tagged on ctx, or "".
func PrincipalFrom(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

// MeteredProvider wraps a Provider and records each call's token usage
// against the principal's daily budget. Calls without a tagged principal
// (or without reported usage) pass through unmetered.
type MeteredProvider struct {
	inner  Provider
	budget *TokenBudget
}

// NewMeteredProvider wraps inner with budget accounting.
func NewMeteredProvider(inner Provider, budget *TokenBudget) *MeteredProvider {
	return &MeteredProvider{inner: inner, budget: budget}
}

// Complete implements Provider.
func (m *MeteredProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	comp, err := m.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if comp.Usage != nil {
		if p := PrincipalFrom(ctx); p != "" {
			m.budget.RecordUsage(p, comp.Usage.TotalTokens)
		}
	}
	return comp, nil
}
