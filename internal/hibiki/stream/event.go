// Package stream implements the per-request delivery channel: a finite,
// strictly ordered sequence of typed events pushed by one producer and
// drained by one consumer until a terminal marker.
//
// Two delivery modes share the transport. Progress mode pushes named
// thinking steps as the pipeline advances; character mode holds the full
// response back and replays it one rune at a time with typing-like pacing.
package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// EventType discriminates the frames on a delivery channel.
type EventType string

const (
	// EventConnected opens a progress-mode stream and carries the session id.
	EventConnected EventType = "connected"

	// EventThinkingStep carries one ThinkingStep status update.
	EventThinkingStep EventType = "thinking_step"

	// EventResponseChunk carries one unit of character-paced text.
	EventResponseChunk EventType = "response_chunk"

	// EventResponseComplete is the empty terminal marker of character-paced
	// content, distinct from the chunks themselves.
	EventResponseComplete EventType = "response_complete"

	// EventFinalResponse carries the full result and the persisted
	// user/assistant records.
	EventFinalResponse EventType = "final_response"

	// EventError reports a pipeline-level failure to the caller.
	EventError EventType = "error"
)

// StepType names the pipeline phase a ThinkingStep reports on.
type StepType string

const (
	StepIntentAnalysis     StepType = "intent_analysis"
	StepAgentSelection     StepType = "agent_selection"
	StepAgentExecution     StepType = "agent_execution"
	StepResponseGeneration StepType = "response_generation"
)

// StepStatus is a ThinkingStep's position in its own lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// ThinkingStep is a discrete, named unit of pipeline progress. Steps are
// append-only per request; the set is discarded with the channel after
// delivery.
type ThinkingStep struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      StepStatus     `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewStep creates a pending step with a fresh id.
func NewStep(t StepType, title, description string) *ThinkingStep {
	return &ThinkingStep{
		ID:          uuid.NewString(),
		Type:        t,
		Title:       title,
		Description: description,
		Status:      StepPending,
		Timestamp:   time.Now(),
	}
}

// Message is one persisted chat record echoed in the final_response event.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is one frame on the delivery channel. Exactly the fields relevant
// to Type are set.
type Event struct {
	Type EventType `json:"type"`

	// SessionID is set on connected frames.
	SessionID string `json:"sessionId,omitempty"`

	// Step is set on thinking_step frames.
	Step *ThinkingStep `json:"step,omitempty"`

	// Chunk is one unit of text on response_chunk frames.
	Chunk string `json:"chunk,omitempty"`

	// Result is the pipeline's outcome, set on final_response frames.
	Result *pipeline.HandlerResult `json:"result,omitempty"`

	// Messages are the persisted user and assistant records, set on
	// final_response frames.
	Messages []Message `json:"messages,omitempty"`

	// Error is the plain-language failure message on error frames.
	Error string `json:"error,omitempty"`
}
