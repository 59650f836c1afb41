package nlp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// Parser is the generic action parser shared by every handler family.
// One model call per parse: the family's instruction block and action
// vocabulary are rendered into the prompt, the output is fence-stripped,
// decoded, and validated against the action's parameter schema.
type Parser struct {
	provider Provider
}

// NewParser creates a Parser over the given provider.
func NewParser(provider Provider) *Parser {
	return &Parser{provider: provider}
}

// parserOutput is the model's raw JSON shape before validation.
type parserOutput struct {
	Action               string         `json:"action"`
	Parameters           map[string]any `json:"parameters"`
	ConfirmationRequired bool           `json:"confirmationRequired"`
	ResolvedTargets      []string       `json:"resolvedTargets"`
}

// Parse translates text into a ParsedCommand for the given family.
//
// Failure modes:
//   - provider error: returned as-is (the orchestrator decides whether to
//     surface ErrRateLimit specially).
//   - unparseable JSON: ErrMalformedOutput, wrapped. The call is never
//     retried; a retry is a user-initiated new command.
//   - schema violation: a plain-language validation error naming the
//     offending field.
//
// The returned command is complete and immutable: when it is gated and
// later confirmed, the orchestrator replays this exact object rather than
// parsing the text again.
func (p *Parser) Parse(ctx context.Context, fam *catalog.Family, text, model string, pctx pipeline.ParseContext) (*pipeline.ParsedCommand, error) {
	comp, err := p.provider.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    buildParserPrompt(fam, pctx),
		User:      text,
		JSONMode:  true,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, err
	}

	var out parserOutput
	if err := json.Unmarshal([]byte(StripFences(comp.Content)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	action := pipeline.Action(out.Action)
	if _, ok := fam.Action(action); !ok {
		// An action outside the family's closed set is treated the same as
		// an explicit "unknown"; the executor reports it to the user.
		action = pipeline.ActionUnknown
	}

	if action != pipeline.ActionUnknown {
		if err := fam.ValidateParams(action, out.Parameters); err != nil {
			return nil, err
		}
	}
	if out.Parameters == nil {
		out.Parameters = map[string]any{}
	}

	cmd := &pipeline.ParsedCommand{
		Handler:              fam.ID,
		Action:               action,
		Parameters:           out.Parameters,
		ConfirmationRequired: out.ConfirmationRequired,
		UserInput:            text,
		ResolvedTargets:      out.ResolvedTargets,
	}

	// The static mutating set always wins over the model's own judgement:
	// a mutating action is flagged even when the model forgot to.
	if fam.IsMutating(action) {
		cmd.ConfirmationRequired = true
	}

	return cmd, nil
}
