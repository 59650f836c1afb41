package stream

import (
	"sync"

	"github.com/hibiki-ai/hibiki/common/redact"
)

// defaultBuffer sizes the event channel so a character-paced response of
// typical length never blocks the producer even when the consumer is slow.
const defaultBuffer = 256

// Channel is the one-writer, one-reader event stream owned by a single
// request. Events are emitted strictly in pipeline order; the consumer
// drains Events() until it is closed. Multiple concurrent requests each
// own an independent Channel.
type Channel struct {
	ch chan Event

	mu     sync.Mutex
	closed bool
}

// NewChannel creates a Channel with the default buffer.
func NewChannel() *Channel {
	return &Channel{ch: make(chan Event, defaultBuffer)}
}

// Send pushes ev onto the channel. It blocks when the buffer is full, so
// the consumer must keep draining (discarding, if the client went away)
// until Close. Sending after Close is a no-op rather than a panic: the
// producer may race a teardown and losing a frame to a dead stream is the
// documented best-effort behaviour.
func (c *Channel) Send(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.ch <- ev
	c.mu.Unlock()
}

// Close ends the stream. The consumer sees Events() close after the last
// buffered frame.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Events returns the read side of the channel.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// StepEmitter enforces the thinking-step ordering contract over a Channel:
// a step's completed or error update can only follow its own in_progress
// update, because both transitions go through the same tracked object.
type StepEmitter struct {
	ch *Channel
}

// NewStepEmitter creates a StepEmitter writing to ch.
func NewStepEmitter(ch *Channel) *StepEmitter {
	return &StepEmitter{ch: ch}
}

// Begin creates a step, emits its in_progress update, and returns it for
// the matching Complete or Fail call.
func (e *StepEmitter) Begin(t StepType, title, description string) *ThinkingStep {
	step := NewStep(t, title, description)
	step.Status = StepInProgress
	e.emit(step)
	return step
}

// Complete marks step completed, attaches metadata, and emits the update.
func (e *StepEmitter) Complete(step *ThinkingStep, metadata map[string]any) {
	step.Status = StepCompleted
	if metadata != nil {
		step.Metadata = metadata
	}
	e.emit(step)
}

// Fail marks step errored with the given message and emits the update.
func (e *StepEmitter) Fail(step *ThinkingStep, msg string) {
	step.Status = StepError
	if step.Metadata == nil {
		step.Metadata = map[string]any{}
	}
	step.Metadata["error"] = msg
	e.emit(step)
}

// emit snapshots the step so later status changes do not mutate frames
// already queued on the channel. Metadata goes through redaction since
// step frames leave the process boundary.
func (e *StepEmitter) emit(step *ThinkingStep) {
	snap := *step
	if step.Metadata != nil {
		snap.Metadata = redact.Map(step.Metadata)
	}
	e.ch.Send(Event{Type: EventThinkingStep, Step: &snap})
}
