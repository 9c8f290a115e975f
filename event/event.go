// Package event provides the progress notification stream for agent runs.
// Consumers receive events on a channel; emission never blocks the loop,
// so a slow or absent consumer costs events, not correctness. The event
// types map 1:1 onto the AG-UI protocol.
package event

import (
	"time"

	"github.com/strandworks/strand"
)

// Type identifies the kind of event.
type Type string

// Run lifecycle events
const (
	// RunStart fires when an agent run begins.
	RunStart Type = "run_start"

	// RunEnd fires when a run terminates, whatever the termination signal.
	RunEnd Type = "run_end"

	// RunError fires when an unrecoverable error ends the run.
	RunError Type = "run_error"
)

// Iteration lifecycle events
const (
	// IterationStart fires at the top of each loop iteration.
	IterationStart Type = "iteration_start"

	// IterationEnd fires after an iteration's tool batch resolves.
	IterationEnd Type = "iteration_end"
)

// Message lifecycle events
const (
	// MessageStart fires when an assistant message begins streaming.
	MessageStart Type = "message_start"

	// MessageDelta fires for each streamed text fragment.
	MessageDelta Type = "message_delta"

	// MessageEnd fires when the assistant message completes.
	MessageEnd Type = "message_end"
)

// Tool call lifecycle events
const (
	// ToolCallStart fires when a tool_use block opens, before arguments
	// have streamed.
	ToolCallStart Type = "tool_call_start"

	// ToolCallReady fires when the call's arguments are complete, which
	// may be well before the message ends.
	ToolCallReady Type = "tool_call_ready"

	// ToolCallExecuting fires when execution is launched.
	ToolCallExecuting Type = "tool_call_executing"

	// ToolCallResult fires with the execution result.
	ToolCallResult Type = "tool_call_result"
)

// Event is one observable occurrence during an agent run.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// MessageID correlates MessageStart/Delta/End events.
	MessageID string

	// Delta contains the text fragment for MessageDelta events.
	Delta string

	// ToolCall contains the call for tool lifecycle events.
	ToolCall *strand.ToolCall

	// ToolResult contains the result for ToolCallResult events.
	ToolResult *strand.ToolResult

	// Iteration is the loop iteration (1-indexed) for iteration and tool
	// events.
	Iteration int

	// Signal carries the termination signal kind on RunEnd.
	Signal string

	// Message carries human-readable detail (termination reason, error
	// context).
	Message string

	// Error contains the error for RunError events.
	Error error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emit sends an event with timestamp to the channel without blocking.
// A full channel drops the event.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
		// Channel full - don't block
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}
