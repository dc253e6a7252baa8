package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies execution lifecycle events.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventToolCalled    EventType = "tool_called"
	EventToolCompleted EventType = "tool_completed"
	EventToolFailed    EventType = "tool_failed"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
)

// Terminal reports whether the event ends its execution's stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed
}

// Event is one entry in an execution's ordered lifecycle stream.
// Delivery is best effort; late subscribers reconstruct prior events
// from persisted sub-step rows.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	ExecutionID string         `json:"executionId"`
	Timestamp   time.Time      `json:"timestamp"`
	StepIndex   *int           `json:"stepIndex,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// NewEvent builds a timestamped event for an execution.
func NewEvent(t EventType, executionID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		ExecutionID: executionID,
		Timestamp:   time.Now().UTC(),
	}
}

// WithStep attaches the step's template index to the event.
func (e Event) WithStep(index int) Event {
	e.StepIndex = &index
	return e
}

// WithData attaches a payload entry to the event.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithError attaches an error message to the event.
func (e Event) WithError(msg string) Event {
	e.Error = msg
	return e
}
