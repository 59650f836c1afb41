package pipeline_test

import (
	"encoding/json"
	"testing"

	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

func TestCloneIsDeep(t *testing.T) {
	orig := &pipeline.ParsedCommand{
		Handler:              "drive",
		Action:               "delete_file_by_name",
		Parameters:           map[string]any{"fileName": "draft.txt"},
		ConfirmationRequired: true,
		UserInput:            "delete draft.txt",
		ResolvedTargets:      []string{"draft.txt"},
	}

	cp := orig.Clone()
	cp.Parameters["fileName"] = "other.txt"
	cp.ResolvedTargets[0] = "other.txt"
	cp.Action = "rename_file"

	if orig.Parameters["fileName"] != "draft.txt" {
		t.Error("mutating the clone's parameters changed the original")
	}
	if orig.ResolvedTargets[0] != "draft.txt" {
		t.Error("mutating the clone's targets changed the original")
	}
	if orig.Action != "delete_file_by_name" {
		t.Error("mutating the clone changed the original action")
	}
}

func TestCloneNil(t *testing.T) {
	var c *pipeline.ParsedCommand
	if c.Clone() != nil {
		t.Error("Clone() of nil != nil")
	}
}

func TestStringParam(t *testing.T) {
	cmd := &pipeline.ParsedCommand{Parameters: map[string]any{
		"fileName": "draft.txt",
		"issue":    float64(12),
	}}

	if v, ok := cmd.StringParam("fileName"); !ok || v != "draft.txt" {
		t.Errorf("StringParam(fileName) = %q, %v", v, ok)
	}
	if _, ok := cmd.StringParam("issue"); ok {
		t.Error("StringParam(issue) ok = true for a non-string value")
	}
	if _, ok := cmd.StringParam("missing"); ok {
		t.Error("StringParam(missing) ok = true")
	}
}

func TestMarshalCompactRoundTrips(t *testing.T) {
	orig := &pipeline.ParsedCommand{
		Handler:              "drive",
		Action:               "delete_file_by_name",
		Parameters:           map[string]any{"fileName": "draft.txt"},
		ConfirmationRequired: true,
		UserInput:            "delete draft.txt",
	}

	var got pipeline.ParsedCommand
	if err := json.Unmarshal([]byte(orig.MarshalCompact()), &got); err != nil {
		t.Fatalf("Unmarshal(MarshalCompact()) error = %v", err)
	}
	if got.Handler != orig.Handler || got.Action != orig.Action || !got.ConfirmationRequired {
		t.Errorf("round trip = %+v, want %+v", got, orig)
	}
	if got.Parameters["fileName"] != "draft.txt" {
		t.Errorf("Parameters = %v", got.Parameters)
	}
}

func TestSimpleDecisionFailSafeShape(t *testing.T) {
	d := pipeline.SimpleDecision()
	if d.Strategy != pipeline.StrategySimple {
		t.Errorf("Strategy = %q, want simple", d.Strategy)
	}
	if d.Confidence != 100 {
		t.Errorf("Confidence = %d, want 100", d.Confidence)
	}
	if d.HandlerID != "" || d.HandlerChain != nil {
		t.Errorf("handler fields = %q/%v, want empty", d.HandlerID, d.HandlerChain)
	}
}
