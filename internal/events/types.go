// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	ExecutionSucceeded EventType = "execution.succeeded"
	ExecutionFailed    EventType = "execution.failed"
	ExecutionCancelled EventType = "execution.cancelled"
	StepExecuted       EventType = "step.executed"

	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	EventTime time.Time `json:"time"`
}

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ExecutionSucceededEvent is emitted once per committed route.
type ExecutionSucceededEvent struct {
	BaseEvent
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	Route       string `json:"route"`
	StartAmount uint64 `json:"start_amount"`
	FinalAmount uint64 `json:"final_amount"`
	Profit      uint64 `json:"profit"`
	ProfitBps   uint64 `json:"profit_bps"`
	Steps       uint8  `json:"steps"`
}

// ExecutionFailedEvent is emitted when a route was rolled back.
type ExecutionFailedEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	Owner     string `json:"owner"`
	Code      uint32 `json:"code,omitempty"`
	Name      string `json:"name,omitempty"`
	// Step is the zero-based failing step, -1 when not tied to one.
	Step  int    `json:"step"`
	Error string `json:"error"`
}

// ExecutionCancelledEvent is emitted for an explicit cancel.
type ExecutionCancelledEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// StepExecutedEvent describes one hop of a committed route.
type StepExecutedEvent struct {
	BaseEvent
	RequestID    string `json:"request_id"`
	Index        int    `json:"index"`
	Venue        string `json:"venue"`
	InputMint    string `json:"input_mint"`
	OutputMint   string `json:"output_mint"`
	InputAmount  uint64 `json:"input_amount"`
	MinOutput    uint64 `json:"min_output"`
	OutputAmount uint64 `json:"output_amount"`
	SlippageBps  uint16 `json:"slippage_bps"`
}
