package agent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/client"
	"github.com/strandworks/strand/tool"
)

// scriptedStream replays a fixed event sequence.
type scriptedStream struct {
	events []strand.StreamEvent
	pos    int
}

func (s *scriptedStream) Next() (strand.StreamEvent, error) {
	if s.pos >= len(s.events) {
		return strand.StreamEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedClient serves one script per model call, repeating the last
// script once they run out, and records every request it sees.
type scriptedClient struct {
	mu       sync.Mutex
	scripts  [][]strand.StreamEvent
	requests []client.Request
}

func (c *scriptedClient) Stream(ctx context.Context, req client.Request) (client.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.scripts) {
		i = len(c.scripts) - 1
	}
	return &scriptedStream{events: c.scripts[i]}, nil
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *scriptedClient) request(i int) client.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

// toolScript is a full streamed response with one tool_use block whose
// arguments arrive in two fragments.
func toolScript(id, name, args string) []strand.StreamEvent {
	mid := len(args) / 2
	return []strand.StreamEvent{
		{Kind: strand.EventMessageStart, Usage: &strand.Usage{InputTokens: 10}},
		{Kind: strand.EventBlockStart, Index: 0, Block: &strand.ContentBlock{Type: strand.BlockToolUse, ID: id, Name: name}},
		{Kind: strand.EventBlockDelta, Index: 0, Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: args[:mid]}},
		{Kind: strand.EventBlockDelta, Index: 0, Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: args[mid:]}},
		{Kind: strand.EventBlockStop, Index: 0},
		{Kind: strand.EventMessageDelta, StopReason: "tool_use", Usage: &strand.Usage{OutputTokens: 5}},
		{Kind: strand.EventMessageStop},
	}
}

// textScript is a full streamed response with one text block.
func textScript(text string) []strand.StreamEvent {
	return []strand.StreamEvent{
		{Kind: strand.EventMessageStart, Usage: &strand.Usage{InputTokens: 10}},
		{Kind: strand.EventBlockStart, Index: 0, Block: &strand.ContentBlock{Type: strand.BlockText}},
		{Kind: strand.EventBlockDelta, Index: 0, Delta: &strand.Delta{Type: strand.DeltaText, Text: text}},
		{Kind: strand.EventBlockStop, Index: 0},
		{Kind: strand.EventMessageDelta, StopReason: "end_turn", Usage: &strand.Usage{OutputTokens: 5}},
		{Kind: strand.EventMessageStop},
	}
}

type echoArgs struct {
	Note string `json:"note" desc:"Text to echo back" required:"true"`
}

func echoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry := tool.NewRegistry()
	tool.MustRegisterFunc(registry, "echo", "Echo the note back",
		func(ctx context.Context, args echoArgs) (string, error) {
			return args.Note, nil
		},
	)
	return registry
}

func TestLoopToolExchange(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	registry := tool.NewRegistry()
	tool.MustRegisterFunc(registry, "echo", "Echo the note back",
		func(ctx context.Context, args echoArgs) (string, error) {
			mu.Lock()
			received = append(received, args.Note)
			mu.Unlock()
			return args.Note, nil
		},
	)

	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"hello"}`),
		textScript("done"),
	}}

	loop := New(c, registry)
	result, err := loop.Run(context.Background(), "say hello")
	require.NoError(t, err)

	assert.Equal(t, SignalComplete, result.Signal.Kind)
	assert.Equal(t, "done", result.FinalText)

	// The two streamed fragments arrive at the handler as one argument set.
	require.Len(t, received, 1)
	assert.Equal(t, "hello", received[0])

	// History pairs the tool_use with its tool_result in the next user turn.
	history := result.State.History
	require.Len(t, history, 4)
	assert.Equal(t, strand.RoleUser, history[0].Role)
	assert.Equal(t, strand.RoleAssistant, history[1].Role)

	uses := history[1].ToolCalls()
	require.Len(t, uses, 1)
	assert.Equal(t, "t1", uses[0].ID)
	assert.Equal(t, `{"note":"hello"}`, uses[0].Arguments)

	require.Equal(t, strand.RoleUser, history[2].Role)
	require.NotEmpty(t, history[2].Blocks)
	assert.Equal(t, strand.BlockToolResult, history[2].Blocks[0].Type)
	results := history[2].ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].ToolCallID)
	assert.Equal(t, "hello", results[0].Content)
	assert.False(t, results[0].IsError)

	require.NoError(t, strand.ValidateExchange(history[1], history[2]))

	// The second model call saw the full exchange.
	require.Equal(t, 2, c.calls())
	assert.Len(t, c.request(1).Turns, 3)

	// Usage accumulates across both calls.
	assert.Equal(t, 20, result.State.Usage.InputTokens)
	assert.Equal(t, 10, result.State.Usage.OutputTokens)
}

func TestLoopIterationCap(t *testing.T) {
	// Three distinct targets so the stagnation detector stays quiet and the
	// hard bound is what fires.
	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"a"}`),
		toolScript("t2", "echo", `{"note":"b"}`),
		toolScript("t3", "echo", `{"note":"c"}`),
		toolScript("t4", "echo", `{"note":"d"}`),
	}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go", WithMaxIterations(3))
	require.NoError(t, err)

	assert.Equal(t, SignalMaxIterations, result.Signal.Kind)
	// Exactly three model calls, not four.
	assert.Equal(t, 3, c.calls())
	assert.Equal(t, 4, result.State.Iteration)

	// The bound synthesizes a closing assistant turn instead of failing.
	last := result.State.History[len(result.State.History)-1]
	assert.Equal(t, strand.RoleAssistant, last.Role)
	assert.Contains(t, last.Text(), "iteration limit")
}

func TestLoopStagnation(t *testing.T) {
	// The same call on the same target every iteration trips the window
	// repeat threshold on the third occurrence.
	script := toolScript("t1", "echo", `{"note":"again","target":"plan.md"}`)
	c := &scriptedClient{scripts: [][]strand.StreamEvent{script}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go", WithMaxIterations(20))
	require.NoError(t, err)

	assert.Equal(t, SignalStagnation, result.Signal.Kind)
	assert.Equal(t, 3, result.State.Iteration)
	assert.Contains(t, result.Signal.Detail, "plan.md")
}

func TestLoopErrorBudget(t *testing.T) {
	registry := tool.NewRegistry()
	tool.MustRegisterFunc(registry, "echo", "Echo the note back",
		func(ctx context.Context, args echoArgs) (string, error) {
			return "", fmt.Errorf("disk full")
		},
	)

	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"a","target":"a.txt"}`),
		toolScript("t2", "echo", `{"note":"b","target":"b.txt"}`),
	}}

	loop := New(c, registry)
	result, err := loop.Run(context.Background(), "go",
		WithMaxIterations(20), WithMaxErrors(2))
	require.NoError(t, err)

	assert.Equal(t, SignalErrorBudget, result.Signal.Kind)
	assert.Equal(t, 2, result.State.Errors)

	// The error results still reached the history before termination.
	last := result.State.History[len(result.State.History)-1]
	results := last.ToolResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "disk full")
}

func TestLoopCompletionPhrase(t *testing.T) {
	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		textScript("All files written. TASK COMPLETE."),
	}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go",
		WithCompletionPhrase("TASK COMPLETE"))
	require.NoError(t, err)

	assert.Equal(t, SignalExplicitComplete, result.Signal.Kind)
}

func TestLoopExternalComplete(t *testing.T) {
	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"a"}`),
	}}

	loop := New(c, echoRegistry(t))
	loop.Complete()

	result, err := loop.Run(context.Background(), "go", WithMaxIterations(20))
	require.NoError(t, err)

	assert.Equal(t, SignalExternalComplete, result.Signal.Kind)
	assert.Equal(t, 1, result.State.Iteration)
}

func TestLoopAwaitingInput(t *testing.T) {
	registry := echoRegistry(t)
	require.NoError(t, registry.RegisterClientTool(tool.UserInputTool("request_user_input")))

	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "request_user_input", `{"prompt":"Which file?"}`),
	}}

	loop := New(c, registry)
	result, err := loop.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, SignalAwaitingInput, result.Signal.Kind)
	require.Len(t, result.PendingCalls, 1)
	assert.Equal(t, "request_user_input", result.PendingCalls[0].Name)
	assert.Equal(t, `{"prompt":"Which file?"}`, result.PendingCalls[0].Arguments)

	// The request stays in the history so the caller can resume the run
	// with a matching tool_result.
	last := result.State.History[len(result.State.History)-1]
	require.Len(t, last.ToolCalls(), 1)
}

func TestLoopMixedBatchAwaitingInput(t *testing.T) {
	// One response carries a dispatched tool and a client-side input
	// request. The dispatched result must not land in the history alone;
	// it rides out on the result so the resumption turn pairs both calls.
	registry := echoRegistry(t)
	require.NoError(t, registry.RegisterClientTool(tool.UserInputTool("request_user_input")))

	events := []strand.StreamEvent{
		{Kind: strand.EventMessageStart, Usage: &strand.Usage{InputTokens: 10}},
		{Kind: strand.EventBlockStart, Index: 0, Block: &strand.ContentBlock{Type: strand.BlockToolUse, ID: "t1", Name: "echo"}},
		{Kind: strand.EventBlockDelta, Index: 0, Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: `{"note":"hi"}`}},
		{Kind: strand.EventBlockStop, Index: 0},
		{Kind: strand.EventBlockStart, Index: 1, Block: &strand.ContentBlock{Type: strand.BlockToolUse, ID: "t2", Name: "request_user_input"}},
		{Kind: strand.EventBlockDelta, Index: 1, Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: `{"prompt":"Keep going?"}`}},
		{Kind: strand.EventBlockStop, Index: 1},
		{Kind: strand.EventMessageDelta, StopReason: "tool_use", Usage: &strand.Usage{OutputTokens: 5}},
		{Kind: strand.EventMessageStop},
	}

	c := &scriptedClient{scripts: [][]strand.StreamEvent{events}}
	loop := New(c, registry)
	result, err := loop.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, SignalAwaitingInput, result.Signal.Kind)
	require.Len(t, result.PendingCalls, 1)
	assert.Equal(t, "t2", result.PendingCalls[0].ID)

	require.Len(t, result.PendingResults, 1)
	assert.Equal(t, "t1", result.PendingResults[0].ToolCallID)
	assert.Equal(t, "hi", result.PendingResults[0].Content)

	// The history ends on the assistant turn, not on a partial result turn.
	last := result.State.History[len(result.State.History)-1]
	assert.Equal(t, strand.RoleAssistant, last.Role)
	require.Len(t, last.ToolCalls(), 2)

	// Held results merged with the user's answer close the exchange.
	answers := append(result.PendingResults, strand.ToolResult{
		ToolCallID: result.PendingCalls[0].ID,
		Content:    "yes",
	})
	require.NoError(t, strand.ValidateExchange(last, strand.NewToolResultTurn(answers...)))
}

func TestLoopAwaitInputToolByName(t *testing.T) {
	// The pause tool is recognized by name alone; no client-tool
	// registration is required.
	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "ask_user", `{"prompt":"Which branch?"}`),
	}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go", WithAwaitInputTool("ask_user"))
	require.NoError(t, err)

	assert.Equal(t, SignalAwaitingInput, result.Signal.Kind)
	require.Len(t, result.PendingCalls, 1)
	assert.Equal(t, "ask_user", result.PendingCalls[0].Name)
	assert.Empty(t, result.PendingResults)
}

func TestLoopConfidenceTarget(t *testing.T) {
	verifier := func(ctx context.Context, call strand.ToolCall, result strand.ToolResult) tool.Verification {
		return tool.Verification{Confidence: 0.9}
	}

	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"a","target":"a.txt"}`),
		toolScript("t2", "echo", `{"note":"b","target":"b.txt"}`),
		toolScript("t3", "echo", `{"note":"c","target":"c.txt"}`),
	}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go",
		WithMaxIterations(20),
		WithVerifier(verifier),
		WithConfidenceTarget(0.8))
	require.NoError(t, err)

	assert.Equal(t, SignalConfidenceThreshold, result.Signal.Kind)
	assert.Equal(t, 3, result.State.Iteration)
	require.Len(t, result.State.Confidences, 3)
	assert.InDelta(t, 0.9, result.State.Confidences[0], 1e-9)
}

func TestLoopArtifactCap(t *testing.T) {
	c := &scriptedClient{scripts: [][]strand.StreamEvent{
		toolScript("t1", "echo", `{"note":"a","target":"a.txt"}`),
		toolScript("t2", "echo", `{"note":"b","target":"b.txt"}`),
		toolScript("t3", "echo", `{"note":"c","target":"c.txt"}`),
	}}

	loop := New(c, echoRegistry(t))
	result, err := loop.Run(context.Background(), "go",
		WithMaxIterations(20), WithMaxArtifacts(2))
	require.NoError(t, err)

	assert.Equal(t, SignalArtifactCap, result.Signal.Kind)
	assert.Len(t, result.State.Artifacts, 3)
}

func TestLoopContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &scriptedClient{scripts: [][]strand.StreamEvent{textScript("done")}}
	loop := New(c, echoRegistry(t))

	_, err := loop.Run(ctx, "go")
	require.ErrorIs(t, err, context.Canceled)
}

func TestApplyOptionsDefaults(t *testing.T) {
	o := ApplyOptions()

	assert.Equal(t, 10, o.MaxIterations)
	assert.True(t, o.Concurrent)
	assert.Equal(t, 10, o.MaxErrors)
	assert.Equal(t, "request_user_input", o.AwaitInputTool)
	assert.Equal(t, DefaultDetectorConfig(), o.Detector)
	assert.NotNil(t, o.Target)
	assert.NotNil(t, o.Estimator)
	assert.NotNil(t, o.Logger)
}
