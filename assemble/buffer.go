package assemble

import (
	"fmt"
	"strings"
)

// Status tracks a tool-call buffer through its lifecycle. Transitions are
// monotone forward only: pending → ready → dispatched → complete | error.
type Status int

const (
	// StatusPending means the buffer is still accumulating argument
	// fragments.
	StatusPending Status = iota
	// StatusReady means the block closed and the arguments parsed; the
	// call may be dispatched.
	StatusReady
	// StatusDispatched means execution has been launched.
	StatusDispatched
	// StatusComplete means execution finished successfully.
	StatusComplete
	// StatusError means argument parsing or execution failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusDispatched:
		return "dispatched"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ToolCallBuffer accumulates the argument payload of one tool_use content
// block as input_json_delta fragments arrive.
type ToolCallBuffer struct {
	// ID is the provider-assigned tool call id.
	ID string
	// Name is the tool to invoke.
	Name string
	// BlockIndex correlates deltas with this buffer.
	BlockIndex int
	// Seq is the position of this tool among the tools seen in the same
	// response (0 for the first).
	Seq int

	payload strings.Builder
	status  Status
}

// Status returns the buffer's current lifecycle status.
func (b *ToolCallBuffer) Status() Status {
	return b.status
}

// Payload returns the accumulated argument fragments.
func (b *ToolCallBuffer) Payload() string {
	return b.payload.String()
}

// Advance moves the buffer to a later lifecycle status. Moving backward or
// standing still is rejected: status is monotone by contract, and a
// violation indicates a bug in the caller.
func (b *ToolCallBuffer) Advance(to Status) error {
	if to <= b.status {
		return fmt.Errorf("tool call %s: cannot move status %s -> %s", b.ID, b.status, to)
	}
	b.status = to
	return nil
}

func (b *ToolCallBuffer) append(fragment string) {
	b.payload.WriteString(fragment)
}
