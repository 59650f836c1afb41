package nlp_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// stubProvider returns a fixed completion (or error) for every call and
// records the requests it saw.
type stubProvider struct {
	content string
	usage   *nlp.TokenUsage
	err     error
	reqs    []nlp.CompletionRequest
}

func (s *stubProvider) Complete(_ context.Context, req nlp.CompletionRequest) (*nlp.Completion, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &nlp.Completion{Content: s.content, Usage: s.usage}, nil
}

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	return cat
}

func TestRouterClassifierFailureDefaultsToSimple(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{err: errors.New("upstream down")}, cat)

	d := r.Route(context.Background(), "delete my draft", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple", d.Strategy)
	}
	if d.Confidence != 100 {
		t.Errorf("Confidence = %d, want 100 on the fail-safe path", d.Confidence)
	}
}

func TestRouterUnparseableOutputDefaultsToSimple(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{content: "I think you want the drive handler."}, cat)

	d := r.Route(context.Background(), "delete my draft", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple", d.Strategy)
	}
}

func TestRouterLowConfidenceForcesSimple(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"single_handler","handlerId":"drive","confidence":69,"isSimpleQuery":false}`,
	}, cat)

	d := r.Route(context.Background(), "maybe delete something?", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple below the confidence threshold", d.Strategy)
	}
	if d.HandlerID != "" {
		t.Errorf("HandlerID = %q, want cleared", d.HandlerID)
	}
}

func TestRouterSimpleQueryFlagWinsOverHandler(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"single_handler","handlerId":"drive","confidence":95,"isSimpleQuery":true}`,
	}, cat)

	d := r.Route(context.Background(), "what is a drive?", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple when isSimpleQuery is set", d.Strategy)
	}
}

func TestRouterUnknownHandlerDefaultsToSimple(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"single_handler","handlerId":"calendar","confidence":95}`,
	}, cat)

	d := r.Route(context.Background(), "schedule a meeting", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple for an unregistered handler", d.Strategy)
	}
}

func TestRouterAcceptsRegisteredHandler(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"single_handler","handlerId":"repo","confidence":88,"complexity":"low"}`,
	}, cat)

	d := r.Route(context.Background(), "list my repositories", "")
	if d.Strategy != pipeline.StrategySingleHandler || d.HandlerID != "repo" {
		t.Errorf("decision = %q/%q, want single_handler/repo", d.Strategy, d.HandlerID)
	}
}

func TestRouterSingleElementChainCollapses(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"handler_chain","handlerChain":["repo"],"confidence":90}`,
	}, cat)

	d := r.Route(context.Background(), "list my repositories", "")
	if d.Strategy != pipeline.StrategySingleHandler || d.HandlerID != "repo" {
		t.Errorf("decision = %q/%q, want collapse to single_handler/repo", d.Strategy, d.HandlerID)
	}
	if d.HandlerChain != nil {
		t.Errorf("HandlerChain = %v, want nil", d.HandlerChain)
	}
}

func TestRouterChainWithUnknownLinkDefaultsToSimple(t *testing.T) {
	cat := loadCatalog(t)
	r := nlp.NewRouter(&stubProvider{
		content: `{"strategy":"handler_chain","handlerChain":["repo","calendar"],"confidence":90}`,
	}, cat)

	d := r.Route(context.Background(), "summarize issues into my calendar", "")
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple when a chain link is unregistered", d.Strategy)
	}
}

func TestParserMalformedOutput(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	p := nlp.NewParser(&stubProvider{content: "sure, deleting it now"})

	_, err := p.Parse(context.Background(), fam, "delete draft.txt", "", pipeline.ParseContext{})
	if !errors.Is(err, nlp.ErrMalformedOutput) {
		t.Fatalf("Parse() error = %v, want ErrMalformedOutput", err)
	}
}

func TestParserNoRetryOnMalformedOutput(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	stub := &stubProvider{content: "not json"}
	p := nlp.NewParser(stub)

	p.Parse(context.Background(), fam, "delete draft.txt", "", pipeline.ParseContext{})
	if len(stub.reqs) != 1 {
		t.Fatalf("provider called %d times, want exactly 1", len(stub.reqs))
	}
}

func TestParserUnknownActionMapsToUnknown(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	p := nlp.NewParser(&stubProvider{
		content: `{"action":"format_disk","parameters":{}}`,
	})

	cmd, err := p.Parse(context.Background(), fam, "format my disk", "", pipeline.ParseContext{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Action != pipeline.ActionUnknown {
		t.Errorf("Action = %q, want unknown", cmd.Action)
	}
}

func TestParserForcesConfirmationForMutatingAction(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	// The model forgot confirmationRequired; the static set must win.
	p := nlp.NewParser(&stubProvider{
		content: `{"action":"delete_file_by_name","parameters":{"fileName":"draft.txt"},"confirmationRequired":false}`,
	})

	cmd, err := p.Parse(context.Background(), fam, "delete draft.txt", "", pipeline.ParseContext{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cmd.ConfirmationRequired {
		t.Error("ConfirmationRequired = false, want forced true for a mutating action")
	}
	if cmd.UserInput != "delete draft.txt" {
		t.Errorf("UserInput = %q, want original text preserved", cmd.UserInput)
	}
}

func TestParserSchemaViolationNamesField(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	p := nlp.NewParser(&stubProvider{
		content: `{"action":"delete_file_by_name","parameters":{}}`,
	})

	_, err := p.Parse(context.Background(), fam, "delete something", "", pipeline.ParseContext{})
	if err == nil || !strings.Contains(err.Error(), "fileName") {
		t.Fatalf("Parse() error = %v, want message naming fileName", err)
	}
}

func TestParserProviderErrorPassesThrough(t *testing.T) {
	cat := loadCatalog(t)
	fam, _ := cat.Family("drive")
	p := nlp.NewParser(&stubProvider{err: nlp.ErrRateLimit})

	_, err := p.Parse(context.Background(), fam, "delete draft.txt", "", pipeline.ParseContext{})
	if !errors.Is(err, nlp.ErrRateLimit) {
		t.Fatalf("Parse() error = %v, want ErrRateLimit passed through", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with info string", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced single line content", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nlp.StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRateLimiterBlocksAtLimit(t *testing.T) {
	rl := nlp.NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("Allow() call %d = false, want true", i+1)
		}
	}
	if rl.Allow("alice") {
		t.Error("Allow() over limit = true, want false")
	}
	// Independent quota per principal.
	if !rl.Allow("bob") {
		t.Error("Allow(bob) = false, want true")
	}
	if rl.Remaining("alice") != 0 {
		t.Errorf("Remaining(alice) = %d, want 0", rl.Remaining("alice"))
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := nlp.NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("alice") {
		t.Fatal("first Allow() = false")
	}
	if rl.Allow("alice") {
		t.Fatal("second Allow() inside window = true")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("alice") {
		t.Error("Allow() after window = false, want true")
	}
}

func TestTokenBudgetExhaustion(t *testing.T) {
	tb := nlp.NewTokenBudget(1000)

	if !tb.Allow("alice") {
		t.Fatal("Allow() on fresh principal = false")
	}
	tb.RecordUsage("alice", 999)
	if !tb.Allow("alice") {
		t.Error("Allow() under budget = false, want true")
	}
	tb.RecordUsage("alice", 1)
	if tb.Allow("alice") {
		t.Error("Allow() at budget = true, want false")
	}
	if tb.Remaining("alice") != 0 {
		t.Errorf("Remaining() = %d, want 0", tb.Remaining("alice"))
	}
	// Other principals are unaffected.
	if !tb.Allow("bob") {
		t.Error("Allow(bob) = false, want true")
	}
}

func TestMeteredProviderAttributesUsage(t *testing.T) {
	tb := nlp.NewTokenBudget(1000)
	mp := nlp.NewMeteredProvider(&stubProvider{
		content: "ok",
		usage:   &nlp.TokenUsage{TotalTokens: 250},
	}, tb)

	ctx := nlp.WithPrincipal(context.Background(), "alice")
	if _, err := mp.Complete(ctx, nlp.CompletionRequest{User: "hi"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if rem := tb.Remaining("alice"); rem != 750 {
		t.Errorf("Remaining(alice) = %d, want 750", rem)
	}

	// Without a tagged principal the call passes through unmetered.
	if _, err := mp.Complete(context.Background(), nlp.CompletionRequest{User: "hi"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if rem := tb.Remaining("alice"); rem != 750 {
		t.Errorf("Remaining(alice) after untagged call = %d, want 750", rem)
	}
}
