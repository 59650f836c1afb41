package nlp

import (
	"sync"
	"time"
)

// DefaultTokenBudget is the maximum number of model tokens allowed per
// principal per UTC day when no explicit budget is configured. A single
// request typically costs two to four model calls (route, parse, respond,
// combine), so 100 000 tokens covers a normal day of use.
const DefaultTokenBudget = 100_000

// TokenBudget enforces a per-principal daily token budget across all model
// calls a request makes.
//
// The counter for each principal resets at midnight UTC. Callers:
//  1. Call Allow before starting a request; false means the principal has
//     exhausted today's allocation.
//  2. Call RecordUsage with the token counts reported by the provider.
//
// TokenBudget is safe for concurrent use.
type TokenBudget struct {
	mu     sync.Mutex
	budget int
	usage  map[string]*dailyUsage
}

// dailyUsage tracks cumulative token consumption for one principal within
// the current UTC day.
type dailyUsage struct {
	tokens  int
	resetAt time.Time // next midnight UTC
}

// NewTokenBudget returns a TokenBudget allowing at most dailyBudget tokens
// per principal per UTC day. Non-positive values fall back to
// DefaultTokenBudget.
func NewTokenBudget(dailyBudget int) *TokenBudget {
	if dailyBudget <= 0 {
		dailyBudget = DefaultTokenBudget
	}
	return &TokenBudget{
		budget: dailyBudget,
		usage:  make(map[string]*dailyUsage),
	}
}

// Budget returns the configured daily token limit per principal.
func (tb *TokenBudget) Budget() int {
	return tb.budget
}

// Allow reports whether principal has budget left today. It consumes
// nothing; call RecordUsage with actual counts afterwards.
func (tb *TokenBudget) Allow(principal string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(principal)

	u := tb.usage[principal]
	if u == nil {
		return true
	}
	return u.tokens < tb.budget
}

// RecordUsage adds tokens to principal's running daily total.
func (tb *TokenBudget) RecordUsage(principal string, tokens int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(principal)

	u := tb.usage[principal]
	if u == nil {
		u = &dailyUsage{resetAt: nextMidnightUTC()}
		tb.usage[principal] = u
	}
	u.tokens += tokens
}

// Remaining returns the tokens principal may still consume today.
func (tb *TokenBudget) Remaining(principal string) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(principal)

	u := tb.usage[principal]
	if u == nil {
		return tb.budget
	}
	if rem := tb.budget - u.tokens; rem > 0 {
		return rem
	}
	return 0
}

// resetIfNeeded drops the principal's entry when the UTC calendar day has
// rolled over. Must be called with tb.mu held.
func (tb *TokenBudget) resetIfNeeded(principal string) {
	u := tb.usage[principal]
	if u == nil {
		return
	}
	if time.Now().UTC().After(u.resetAt) {
		delete(tb.usage, principal)
	}
}

// nextMidnightUTC returns midnight UTC at the start of the next calendar day.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
