package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/strandworks/strand"
)

// Verification is the outcome of checking a tool result.
type Verification struct {
	// Confidence scores how well the result matches the call's intent,
	// in [0, 1].
	Confidence float64
	// Err is non-nil when the result fails verification outright.
	Err error
}

// Verifier checks a successful tool result. It runs only for results that
// executed without error.
type Verifier func(ctx context.Context, call strand.ToolCall, result strand.ToolResult) Verification

// VerifiedExecutor wraps an Executor with post-execution verification.
// A result that fails its check is downgraded to an error result: an
// unverified success is worth less to the loop than a visible failure.
type VerifiedExecutor struct {
	exec     Executor
	verify   Verifier
	onVerify func(call strand.ToolCall, v Verification)
	logger   *slog.Logger

	mu     sync.Mutex
	scores map[string]float64
}

// VerifyOption configures a VerifiedExecutor.
type VerifyOption func(*VerifiedExecutor)

// WithVerifyCallback sets a callback invoked after each verification.
func WithVerifyCallback(fn func(call strand.ToolCall, v Verification)) VerifyOption {
	return func(ve *VerifiedExecutor) {
		ve.onVerify = fn
	}
}

// WithVerifyLogger sets the logger for verification diagnostics.
func WithVerifyLogger(l *slog.Logger) VerifyOption {
	return func(ve *VerifiedExecutor) {
		ve.logger = l
	}
}

// NewVerifiedExecutor wraps exec so every successful result passes through
// verify before it reaches the batch.
func NewVerifiedExecutor(exec Executor, verify Verifier, opts ...VerifyOption) *VerifiedExecutor {
	ve := &VerifiedExecutor{
		exec:   exec,
		verify: verify,
		logger: slog.Default(),
		scores: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(ve)
	}
	return ve
}

// Execute runs the call and verifies its result.
func (ve *VerifiedExecutor) Execute(ctx context.Context, call strand.ToolCall) (strand.ToolResult, error) {
	result, err := ve.exec.Execute(ctx, call)
	if err != nil || result.IsError {
		return result, err
	}

	v := ve.verify(ctx, call, result)

	ve.mu.Lock()
	ve.scores[call.ID] = v.Confidence
	ve.mu.Unlock()

	if ve.onVerify != nil {
		ve.onVerify(call, v)
	}

	if v.Err != nil {
		ve.logger.Warn("tool result failed verification",
			"tool", call.Name, "id", call.ID, "error", v.Err)
		return strand.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("result failed verification: %v", v.Err),
			IsError:    true,
		}, nil
	}

	return result, nil
}

// Confidence returns the recorded verification confidence for a call id.
func (ve *VerifiedExecutor) Confidence(id string) (float64, bool) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	score, ok := ve.scores[id]
	return score, ok
}
