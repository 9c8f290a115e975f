// Package agent runs the tool-calling conversation loop.
//
// Each iteration streams one model turn, dispatches tool calls the moment
// their arguments finish streaming, waits for the whole batch, appends the
// paired tool-result turn, and re-evaluates termination. The loop owns no
// mutable state across runs; everything lives in the IterationState handed
// back at termination.
package agent

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/assemble"
	"github.com/strandworks/strand/budget"
	"github.com/strandworks/strand/client"
	"github.com/strandworks/strand/event"
	"github.com/strandworks/strand/tool"
)

// Loop drives autonomous tool-calling conversations. One Loop serves one
// run at a time.
type Loop struct {
	client   client.StreamClient
	registry *tool.Registry
	complete atomic.Bool
}

// New creates a Loop over a streaming client and a tool registry.
func New(c client.StreamClient, registry *tool.Registry) *Loop {
	return &Loop{
		client:   c,
		registry: registry,
	}
}

// Complete marks the current run complete from outside. The loop
// terminates after the iteration in flight.
func (l *Loop) Complete() {
	l.complete.Store(true)
}

// Result is the outcome of a run.
type Result struct {
	// Signal is why the run ended.
	Signal Signal

	// State is the final iteration state, including the full conversation
	// history.
	State *IterationState

	// FinalText is the text of the last assistant turn.
	FinalText string

	// PendingCalls holds client-side tool calls awaiting the caller when
	// the run ended with SignalAwaitingInput.
	PendingCalls []strand.ToolCall

	// PendingResults holds the results of tools that already executed in
	// the same response as the pending client-side calls. The history ends
	// on the assistant turn; the caller must merge these with its answers
	// into the single tool-result turn that resumes the run, keeping every
	// tool call paired with exactly one result.
	PendingResults []strand.ToolResult
}

// Run executes the loop for a single user prompt.
func (l *Loop) Run(ctx context.Context, prompt string, opts ...Option) (*Result, error) {
	return l.RunTurns(ctx, []strand.Turn{strand.NewUserTurn(prompt)}, opts...)
}

// RunTurns executes the loop over an existing conversation. The input
// slice is not mutated.
func (l *Loop) RunTurns(ctx context.Context, turns []strand.Turn, opts ...Option) (*Result, error) {
	options := ApplyOptions(opts...)
	l.complete.Store(false)

	state := newIterationState(turns)
	detector := NewDetector(options.Detector)
	run := &runContext{
		loop:     l,
		options:  options,
		state:    state,
		detector: detector,
	}
	run.buildDispatcher()

	event.Emit(options.Events, event.Event{Type: event.RunStart})

	result, err := run.execute(ctx)
	if err != nil {
		event.Emit(options.Events, event.Event{Type: event.RunError, Error: err, Iteration: state.Iteration})
		return nil, err
	}

	event.Emit(options.Events, event.Event{
		Type:      event.RunEnd,
		Iteration: state.Iteration,
		Signal:    string(result.Signal.Kind),
		Message:   result.Signal.Detail,
	})
	return result, nil
}

// runContext carries one run's wiring.
type runContext struct {
	loop     *Loop
	options  *Options
	state    *IterationState
	detector *Detector

	dispatcher *tool.Dispatcher
	verified   *tool.VerifiedExecutor

	mu          sync.Mutex
	confidences map[string]float64
}

func (r *runContext) buildDispatcher() {
	var exec tool.Executor = r.loop.registry
	if r.options.Verifier != nil {
		r.confidences = make(map[string]float64)
		r.verified = tool.NewVerifiedExecutor(r.loop.registry, r.options.Verifier,
			tool.WithVerifyCallback(func(call strand.ToolCall, v tool.Verification) {
				r.mu.Lock()
				r.confidences[call.ID] = v.Confidence
				r.mu.Unlock()
			}),
			tool.WithVerifyLogger(r.options.Logger),
		)
		exec = r.verified
	}

	r.dispatcher = tool.NewDispatcher(exec,
		tool.WithConcurrency(r.options.Concurrent),
		tool.WithTimeout(r.options.BatchTimeout),
		tool.WithTargetFunc(r.options.Target),
		tool.WithDispatcherLogger(r.options.Logger),
		tool.WithOnResult(func(call strand.ToolCall, result strand.ToolResult) {
			event.Emit(r.options.Events, event.Event{
				Type:       event.ToolCallResult,
				Iteration:  r.state.Iteration,
				ToolCall:   &call,
				ToolResult: &result,
			})
		}),
	)
}

func (r *runContext) execute(ctx context.Context) (*Result, error) {
	opts := r.options
	state := r.state

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state.Iteration++
		if opts.MaxIterations > 0 && state.Iteration > opts.MaxIterations {
			// The hard bound synthesizes a completion rather than failing.
			turn := strand.NewAssistantTurn(strand.NewTextBlock(
				"Stopping: the iteration limit was reached before the task finished."))
			state.append(turn)
			return r.finish(Signal{
				Kind:   SignalMaxIterations,
				Detail: "iteration limit reached",
			}, turn, nil, nil), nil
		}

		event.Emit(opts.Events, event.Event{Type: event.IterationStart, Iteration: state.Iteration})

		iter, err := r.streamIteration(ctx)
		if err != nil {
			return nil, err
		}

		state.append(iter.assistant)
		state.Usage.InputTokens += iter.usage.InputTokens
		state.Usage.OutputTokens += iter.usage.OutputTokens

		// A turn with no dispatched tools and no input request ends the
		// conversation naturally.
		if iter.batch.Len() == 0 && len(iter.pendingInput) == 0 {
			sig := r.evaluate(iter)
			if !sig.Terminal() {
				sig = Signal{Kind: SignalComplete, Detail: "model produced no tool calls"}
			}
			return r.finish(sig, iter.assistant, iter.pendingInput, nil), nil
		}

		r.settleBatch(iter)

		event.Emit(opts.Events, event.Event{Type: event.IterationEnd, Iteration: state.Iteration})

		if sig := r.evaluate(iter); sig.Terminal() {
			return r.finish(sig, iter.assistant, iter.pendingInput, iter.held), nil
		}
	}
}

// iterationOutcome collects what one streamed turn produced.
type iterationOutcome struct {
	assistant    strand.Turn
	asm          *assemble.Assembler
	batch        *tool.Batch
	pendingInput []strand.ToolCall
	held         []strand.ToolResult
	usage        strand.Usage
	regression   error
}

func (r *runContext) streamIteration(ctx context.Context) (*iterationOutcome, error) {
	opts := r.options

	streamCtx := ctx
	cancel := context.CancelFunc(func() {})
	if opts.StreamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, opts.StreamTimeout)
	}
	defer cancel()

	iter := &iterationOutcome{
		batch: r.dispatcher.NewBatch(ctx),
	}

	iter.asm = assemble.New(
		assemble.WithLogger(opts.Logger),
		assemble.WithHooks(assemble.Hooks{
			OnToolDetected: func(id, name string, seq int) {
				event.Emit(opts.Events, event.Event{
					Type:      event.ToolCallStart,
					Iteration: r.state.Iteration,
					ToolCall:  &strand.ToolCall{ID: id, Name: name},
				})
			},
			OnToolReady: func(call strand.ToolCall, seq int) {
				event.Emit(opts.Events, event.Event{
					Type:      event.ToolCallReady,
					Iteration: r.state.Iteration,
					ToolCall:  &call,
				})
				if r.loop.registry.IsClientTool(call.Name) || call.Name == opts.AwaitInputTool {
					iter.pendingInput = append(iter.pendingInput, call)
					return
				}
				r.advanceBuffer(iter.asm, call.ID, assemble.StatusDispatched)
				event.Emit(opts.Events, event.Event{
					Type:      event.ToolCallExecuting,
					Iteration: r.state.Iteration,
					ToolCall:  &call,
				})
				// Execution starts here, while this response is still
				// streaming its remaining blocks.
				iter.batch.Launch(call)
			},
			OnToolError: func(id, name string, err error) {
				r.state.Errors++
				opts.Logger.Warn("tool call discarded", "id", id, "tool", name, "error", err)
			},
			OnTextDelta: func(index int, text string) {
				event.Emit(opts.Events, event.Event{
					Type:      event.MessageDelta,
					Iteration: r.state.Iteration,
					Delta:     text,
				})
			},
		}),
	)

	stream, err := r.loop.client.Stream(streamCtx, client.Request{
		Model:       opts.Model,
		System:      r.composeSystem(ctx),
		Turns:       r.state.History,
		Tools:       r.loop.registry.Tools(),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	event.Emit(opts.Events, event.Event{Type: event.MessageStart, Iteration: r.state.Iteration})

	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Abandoned stream: wait out what was already dispatched, but
			// discard everything else and propagate.
			iter.batch.Wait()
			return nil, err
		}
		iter.asm.Feed(ev)
	}

	event.Emit(opts.Events, event.Event{Type: event.MessageEnd, Iteration: r.state.Iteration})

	iter.assistant = iter.asm.AssistantTurn()
	iter.usage = iter.asm.Usage()
	return iter, nil
}

// settleBatch waits for the full tool batch, closes the exchange with the
// paired tool-result turn, and feeds the detector. The next model call is
// blocked until every tool in the batch has resolved. When the same
// response also carried client-side calls the exchange cannot close yet;
// the batch results are held for the Result instead.
func (r *runContext) settleBatch(iter *iterationOutcome) {
	calls := iter.batch.Calls()
	results := iter.batch.Wait()

	for i, call := range calls {
		result := results[i]
		status := assemble.StatusComplete
		if result.IsError {
			status = assemble.StatusError
			r.state.Errors++
		}
		r.advanceBuffer(iter.asm, call.ID, status)

		target := r.options.Target(call)
		if !result.IsError {
			r.state.recordTarget(target)
		}

		confidence := -1.0
		if r.confidences != nil {
			r.mu.Lock()
			if c, ok := r.confidences[call.ID]; ok {
				confidence = c
			}
			r.mu.Unlock()
		}
		if confidence >= 0 {
			r.state.Confidences = append(r.state.Confidences, confidence)
		}

		if err := r.detector.Record(Operation{
			Target:     target,
			Kind:       call.Name,
			Iteration:  r.state.Iteration,
			Failed:     result.IsError,
			Confidence: confidence,
		}); err != nil {
			iter.regression = err
		}
	}

	if len(calls) == 0 {
		return
	}
	if len(iter.pendingInput) > 0 {
		// A partial tool-result turn would leave the pending calls
		// unpaired. The caller folds these into its resumption turn.
		iter.held = results
		return
	}
	r.state.append(assemble.ToolResultTurn(calls, results, r.options.Logger))
}

func (r *runContext) advanceBuffer(asm *assemble.Assembler, id string, to assemble.Status) {
	buf, ok := asm.Buffer(id)
	if !ok {
		return
	}
	if err := buf.Advance(to); err != nil {
		r.options.Logger.Warn("tool buffer status violation", "id", id, "error", err)
	}
}

// evaluate checks every termination signal; the first true signal wins and
// all raised signals are logged.
func (r *runContext) evaluate(iter *iterationOutcome) Signal {
	opts := r.options
	state := r.state

	var raised []Signal

	if iter.regression != nil {
		raised = append(raised, Signal{Kind: SignalStagnation, Detail: iter.regression.Error()})
	}
	if opts.CompletionPhrase != "" && strings.Contains(iter.assistant.Text(), opts.CompletionPhrase) {
		raised = append(raised, Signal{Kind: SignalExplicitComplete, Detail: "completion phrase detected"})
	}
	if r.loop.complete.Load() {
		raised = append(raised, Signal{Kind: SignalExternalComplete, Detail: "marked complete by caller"})
	}
	if opts.ConfidenceTarget > 0 {
		if avg := state.averageConfidence(opts.Detector.RunLength); avg >= opts.ConfidenceTarget {
			raised = append(raised, Signal{Kind: SignalConfidenceThreshold, Detail: "verification confidence reached target"})
		}
	}
	if reason, flagged := r.detector.Check(); flagged {
		raised = append(raised, Signal{Kind: SignalStagnation, Detail: reason})
	}
	if opts.MaxErrors > 0 && state.Errors >= opts.MaxErrors {
		raised = append(raised, Signal{Kind: SignalErrorBudget, Detail: "tool error budget exhausted"})
	}
	if opts.MaxArtifacts > 0 && len(state.Artifacts) > opts.MaxArtifacts {
		raised = append(raised, Signal{Kind: SignalArtifactCap, Detail: "artifact cap exceeded"})
	}
	if len(iter.pendingInput) > 0 {
		raised = append(raised, Signal{Kind: SignalAwaitingInput, Detail: "model requested user input"})
	}

	if len(raised) == 0 {
		return Signal{}
	}
	for _, sig := range raised {
		opts.Logger.Info("termination signal raised", "kind", sig.Kind, "detail", sig.Detail)
	}
	return raised[0]
}

func (r *runContext) finish(sig Signal, last strand.Turn, pending []strand.ToolCall, held []strand.ToolResult) *Result {
	if sig.Kind != SignalAwaitingInput && len(pending) > 0 {
		// Another signal won while client-side calls were outstanding. The
		// run will not resume, so close the exchange in the history with
		// error results for the calls that never got answers.
		results := held
		for _, call := range pending {
			results = append(results, strand.ToolResult{
				ToolCallID: call.ID,
				Content:    "not executed: the run ended before user input arrived",
				IsError:    true,
			})
		}
		r.state.append(strand.NewToolResultTurn(results...))
		pending, held = nil, nil
	}
	return &Result{
		Signal:         sig,
		State:          r.state,
		FinalText:      last.Text(),
		PendingCalls:   pending,
		PendingResults: held,
	}
}

// composeSystem builds the system prompt: the configured prompt plus
// store items selected under the context token budget.
func (r *runContext) composeSystem(ctx context.Context) string {
	opts := r.options
	if opts.ContextStore == nil || opts.ContextBudget <= 0 {
		return opts.System
	}

	items, err := opts.ContextStore.Items(ctx)
	if err != nil {
		opts.Logger.Warn("context store unavailable", "error", err)
		return opts.System
	}
	if len(items) == 0 {
		return opts.System
	}

	alloc := budget.NewAllocator(
		budget.ProfileFor(opts.Operation, opts.ContextBudget),
		budget.WithEstimator(opts.Estimator),
	)
	if err := alloc.Add(budget.BucketSystem, opts.System); err != nil {
		opts.Logger.Warn("system prompt exceeds its budget bucket", "error", err)
	}
	selected, err := alloc.Select(budget.BucketContext, items)
	if err != nil || len(selected) == 0 {
		return opts.System
	}

	var sb strings.Builder
	sb.WriteString(opts.System)
	for _, item := range selected {
		sb.WriteString("\n\n<context name=\"")
		sb.WriteString(item.Name)
		sb.WriteString("\">\n")
		sb.WriteString(item.Content)
		sb.WriteString("\n</context>")
	}
	return sb.String()
}
