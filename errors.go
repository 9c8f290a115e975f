package strand

import (
	"errors"
	"fmt"
)

// TransportError indicates the stream connection itself failed. Partial
// state built from the stream is discarded and the error propagates to the
// caller. Transport errors are retryable at the connection level.
type TransportError struct {
	// Op names the failing operation, e.g. "connect" or "read".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or unexpected event shape on an
// otherwise healthy stream. The offending frame or block is dropped and
// streaming continues; a ProtocolError is surfaced only through logs and
// notifications, never as a stream-fatal failure.
type ProtocolError struct {
	// Frame is a short excerpt of the offending frame or event.
	Frame  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s (frame %q)", e.Reason, e.Frame)
}

// ToolArgumentError indicates a tool call carried missing or invalid
// arguments. It becomes a structured error result; the conversation
// continues.
type ToolArgumentError struct {
	Tool   string
	Reason string
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("tool %s: invalid arguments: %s", e.Tool, e.Reason)
}

// ToolExecutionError indicates a tool ran but failed. It becomes a
// structured error result the model can react to, and feeds the stagnation
// counters.
type ToolExecutionError struct {
	Tool string
	ID   string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (%s) failed: %v", e.Tool, e.ID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// LoopAbortError terminates an agent run gracefully: stagnation, iteration
// cap, error budget. Progress made before the abort remains intact.
type LoopAbortError struct {
	// Kind is the terminal signal kind, e.g. "stagnation" or "max_iterations".
	Kind   string
	Reason string
}

func (e *LoopAbortError) Error() string {
	return fmt.Sprintf("loop aborted (%s): %s", e.Kind, e.Reason)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is or wraps a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsLoopAbort reports whether err is or wraps a LoopAbortError.
func IsLoopAbort(err error) bool {
	var le *LoopAbortError
	return errors.As(err, &le)
}

// Retryable reports whether the operation that produced err may be retried
// at the transport level. Only transport failures qualify; protocol and
// tool errors are handled in place.
func Retryable(err error) bool {
	return IsTransport(err)
}
