package domain

import (
	"context"
	"errors"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart  EventType = "step_start"
	EventStepFinish EventType = "step_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// StepEvent represents the start or the settlement of a networked step.
type StepEvent struct {
	EventBase
	Step Step `json:"step"`

	// Set on EventStepFinish only.
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// Outcome labels a finished step for metrics and logs.
func (e *StepEvent) Outcome() string {
	if e.Err == nil {
		return "success"
	}
	var de *Error
	if errors.As(e.Err, &de) {
		return string(de.Kind)
	}
	return "error"
}

// LifecycleHooks defines callbacks for workflow observability.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepFinish func(context.Context, *StepEvent)
}
