package pipeline

// ResultType tags a HandlerResult with its outcome category. The four
// values form the complete vocabulary between handlers, the orchestrator,
// and the transport; a caller never sees a raw error.
type ResultType string

const (
	// ResultOK means the command (or simple response) completed.
	ResultOK ResultType = "ok"

	// ResultError means the request failed in a way the user must see:
	// a parse failure, a validation failure, or a fallback that itself
	// failed. Handler execution failures never surface as ResultError from
	// the orchestrator; they degrade to a simple-fallback ResultOK.
	ResultError ResultType = "error"

	// ResultConfirmationRequired means a mutating command was parsed but
	// not yet confirmed. Metadata carries the prompt and the echoed
	// ParsedCommand; no side effect has occurred.
	ResultConfirmationRequired ResultType = "confirmation_required"

	// ResultAuthorizationRequired means the handler needs the user to
	// connect the external service first. Metadata carries the
	// authorization URL. This is a precondition, not a failure, and the
	// orchestrator passes it through without fallback.
	ResultAuthorizationRequired ResultType = "authorization_required"
)

// ResultMetadata is the structured payload attached to a HandlerResult.
type ResultMetadata struct {
	// Action is the action that was performed (or proposed, when gated).
	Action Action `json:"action,omitempty"`

	// Success reports whether the action's external effect completed.
	// History is appended only when Success is true and the action is
	// mutating.
	Success bool `json:"success"`

	// Strategy records which orchestration path produced the result:
	// "simple", "single_handler", "handler_chain", or "simple_fallback"
	// when a handler failed and the general responder answered instead.
	Strategy string `json:"strategy,omitempty"`

	// AgentError holds the original handler error message when Strategy is
	// "simple_fallback". Kept separate from Error so a degraded answer is
	// never mistaken for a handler success by call sites inspecting it.
	AgentError string `json:"agentError,omitempty"`

	// ConfirmationPrompt is the question shown to the user when the result
	// is ResultConfirmationRequired.
	ConfirmationPrompt string `json:"confirmationPrompt,omitempty"`

	// ParsedCommand echoes the gated command so the caller can resubmit it
	// byte-for-byte with confirmed=true.
	ParsedCommand *ParsedCommand `json:"parsedCommand,omitempty"`

	// AuthorizationURL is the external consent URL when the result is
	// ResultAuthorizationRequired.
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
}

// HandlerResult is the single return contract of every handler and of the
// orchestrator itself.
type HandlerResult struct {
	Type     ResultType     `json:"type"`
	Content  string         `json:"content"`
	Metadata ResultMetadata `json:"metadata"`
	Error    string         `json:"error,omitempty"`
}

// OKResult builds a successful result for the given action.
func OKResult(action Action, content string) *HandlerResult {
	return &HandlerResult{
		Type:    ResultOK,
		Content: content,
		Metadata: ResultMetadata{
			Action:  action,
			Success: true,
		},
	}
}

// ErrorResult builds a user-facing error result. msg must already be
// plain language; raw wrapped errors belong in logs, not here.
func ErrorResult(action Action, msg string) *HandlerResult {
	return &HandlerResult{
		Type:    ResultError,
		Content: msg,
		Metadata: ResultMetadata{
			Action:  action,
			Success: false,
		},
		Error: msg,
	}
}

// ConfirmationResult builds the gated result returned when a mutating
// command has not yet been confirmed.
func ConfirmationResult(cmd *ParsedCommand, prompt string) *HandlerResult {
	return &HandlerResult{
		Type:    ResultConfirmationRequired,
		Content: prompt,
		Metadata: ResultMetadata{
			Action:             cmd.Action,
			Success:            false,
			ConfirmationPrompt: prompt,
			ParsedCommand:      cmd,
		},
	}
}

// AuthorizationResult builds the pass-through result for a missing
// external authorization.
func AuthorizationResult(handler string, url string) *HandlerResult {
	return &HandlerResult{
		Type: ResultAuthorizationRequired,
		Content: "Please connect your " + handler + " account first, then try again.",
		Metadata: ResultMetadata{
			Success:          false,
			AuthorizationURL: url,
		},
	}
}
