package tool

import (
	"context"

	"github.com/strandworks/strand"
)

// Handler executes a tool call and returns the result content.
// The context carries the batch deadline and cancellation.
type Handler func(ctx context.Context, call strand.ToolCall) (string, error)

// TypedHandler executes a tool call with arguments unmarshaled into T.
type TypedHandler[T any] func(ctx context.Context, args T) (string, error)
