package client

import (
	"context"

	"github.com/strandworks/strand"
)

// Request describes one streamed model call.
type Request struct {
	// Model is the model identifier.
	Model string
	// System is the system prompt, empty for none.
	System string
	// Turns is the conversation so far, oldest first.
	Turns []strand.Turn
	// Tools declares the tools the model may call.
	Tools []strand.Tool
	// MaxTokens caps the response length.
	MaxTokens int
	// Temperature is the sampling temperature; zero means provider default.
	Temperature float64
}

// Stream is one in-flight model response. Next returns events in arrival
// order and io.EOF when the response is finished. Close abandons the
// response; a closed stream's remaining events are discarded.
type Stream interface {
	Next() (strand.StreamEvent, error)
	Close() error
}

// StreamClient opens streamed model calls. Implementations must support
// mid-stream cancellation through the request context.
type StreamClient interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
