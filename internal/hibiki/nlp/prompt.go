package nlp

import (
	"fmt"
	"strings"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// routerPromptTmpl is the system message for the strategy classifier.
// Two printf verbs are substituted at call time:
//  1. %s: the handler catalogue ("- id: description" lines)
//  2. %s: comma-separated list of valid handler ids
const routerPromptTmpl = `You are the request router of a chat assistant that can operate external
services on the user's behalf.

Available handlers:
%s

RULES (strict, do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no text outside JSON.
2. "handlerId" must be one of: %s. Do not invent handler ids.
3. A general question, greeting, or anything needing no external service is a
   simple query: set "strategy" to "simple" and "isSimpleQuery" to true.
4. Use "handler_chain" only when the request genuinely needs two or more
   handlers in sequence; list them in execution order in "handlerChain".
5. "confidence" is an integer 0-100 expressing how certain you are.

JSON schema for your response:
{
  "strategy":     "simple" | "single_handler" | "handler_chain",
  "handlerId":    "<handler id or omit>",
  "handlerChain": ["<handler id>", ...],
  "confidence":   0-100,
  "reasoning":    "<one sentence>",
  "isSimpleQuery": true | false,
  "complexity":   "low" | "medium" | "high"
}`

// buildRouterPrompt renders the classifier system message for the given
// handler catalogue.
func buildRouterPrompt(cat *catalog.Catalog) string {
	return fmt.Sprintf(routerPromptTmpl, cat.RouterCatalogue(), strings.Join(cat.IDs(), ", "))
}

// parserPromptTmpl is the shared system message for every family's action
// parser. Substitutions:
//  1. %s: family instruction block from the manifest
//  2. %s: rendered action vocabulary
//  3. %s: today's date
//  4. %s: the authenticated principal id
//  5. %s: last touched item line (or "(none)")
const parserPromptTmpl = `You translate one user message into exactly one structured action.

%s

Actions you may produce (name, description, parameter schema):
%s

Context:
- Today's date: %s
- Authenticated user: %s (first-person references like "my" mean this user)
- Last touched item: %s

RULES (strict, do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no text outside JSON.
2. "action" must be one of the listed action names, or "unknown" when the
   message does not map onto any of them.
3. "parameters" must match the action's schema exactly, with no extra fields.
4. Set "confirmationRequired" to true for any action that deletes, writes,
   moves, or shares anything.
5. When the user says "it" or "that file/document", resolve it to the last
   touched item and list the resolved identifier in "resolvedTargets".

JSON schema for your response:
{
  "action":               "<action name>",
  "parameters":           { ... },
  "confirmationRequired": true | false,
  "resolvedTargets":      ["<identifier>", ...]
}`

// buildParserPrompt renders the action-parser system message for one family.
func buildParserPrompt(fam *catalog.Family, pctx pipeline.ParseContext) string {
	var vocab strings.Builder
	for _, spec := range fam.Actions() {
		if spec.Name == pipeline.ActionUnknown {
			continue
		}
		fmt.Fprintf(&vocab, "- %s: %s", spec.Name, spec.Summary)
		if spec.Mutating {
			vocab.WriteString(" (mutating)")
		}
		if spec.SchemaJSON != "" {
			fmt.Fprintf(&vocab, " (schema: %s)", spec.SchemaJSON)
		}
		vocab.WriteString("\n")
	}

	lastItem := "(none)"
	if e := pctx.LastEntry; e != nil && e.Command != nil {
		lastItem = fmt.Sprintf("%s via %s", e.Command.Action, e.Command.Handler)
		if len(e.Command.ResolvedTargets) > 0 {
			lastItem += " → " + strings.Join(e.Command.ResolvedTargets, ", ")
		} else if name, ok := firstStringParam(e.Command); ok {
			lastItem += " → " + name
		}
	}

	return fmt.Sprintf(parserPromptTmpl,
		strings.TrimSpace(fam.Instruction), vocab.String(), pctx.Today, pctx.Principal, lastItem)
}

// firstStringParam picks a representative parameter value for the "last
// touched item" context line. Preference order matches the manifests'
// naming conventions.
func firstStringParam(cmd *pipeline.ParsedCommand) (string, bool) {
	for _, key := range []string{"fileName", "documentId", "title", "repo", "newName"} {
		if v, ok := cmd.StringParam(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// responderPrompt is the system message for the general-purpose responder
// used by the simple strategy and the fallback path.
const responderPrompt = `You are Hibiki, a helpful chat assistant. Answer the user's message
directly and concisely in plain language. You cannot run commands or touch
external services in this mode; if the user asked for that, explain what
you understood and ask them to rephrase.`

// combinerPromptTmpl is the system message for the chain-combination call.
// One substitution: the original user request.
const combinerPromptTmpl = `You are Hibiki, a chat assistant. Several tools ran in sequence to serve
this request:

%s

Combine the tool outputs below into one coherent answer to the original
request. Do not mention the tools or the sequencing; just answer.`

// StripFences removes a surrounding markdown code fence from s, tolerating
// an info string on the opening fence (e.g. "json"). Models sometimes
// fence their output even in JSON mode, so every JSON parse in this
// package goes through here first.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		// Only drop the first line when it is an info string, not content.
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
