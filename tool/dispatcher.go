package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/strandworks/strand"
)

// Executor runs a single tool call. *Registry implements Executor; remote
// executors (MCP servers) implement it too.
type Executor interface {
	Execute(ctx context.Context, call strand.ToolCall) (strand.ToolResult, error)
}

// TargetFunc names the resource a tool call mutates. Calls in the same
// batch with the same non-empty target never run concurrently.
type TargetFunc func(call strand.ToolCall) string

// TargetOf is the default TargetFunc. It reads the conventional resource
// argument keys from the call's JSON arguments, first match wins.
func TargetOf(call strand.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return ""
	}
	for _, key := range []string{"path", "file", "filename", "target"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Dispatcher launches tool calls as they become ready and collects their
// results. One Dispatcher serves many batches; per-target serialization
// spans all of them.
type Dispatcher struct {
	exec       Executor
	concurrent bool
	timeout    time.Duration
	target     TargetFunc
	onResult   func(call strand.ToolCall, result strand.ToolResult)
	logger     *slog.Logger
	targets    keyedLocks
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConcurrency enables concurrent execution within a batch. The default
// is sequential execution in launch order.
func WithConcurrency(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.concurrent = enabled
	}
}

// WithTimeout bounds each batch. Calls still running at the deadline
// produce error results instead of blocking Wait.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithTargetFunc replaces the default target extraction.
func WithTargetFunc(fn TargetFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.target = fn
	}
}

// WithOnResult sets a callback invoked once per finished call. Callbacks
// are serialized and fire in completion order, not launch order.
func WithOnResult(fn func(call strand.ToolCall, result strand.ToolResult)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onResult = fn
	}
}

// WithDispatcherLogger sets the logger for execution diagnostics.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a Dispatcher backed by the given executor.
func NewDispatcher(exec Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		exec:   exec,
		target: TargetOf,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Batch collects the tool calls of one model response. Calls are launched
// incrementally while the response is still streaming; Wait returns the
// results in launch order.
type Batch struct {
	d      *Dispatcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	calls   []strand.ToolCall
	results []strand.ToolResult

	// prev chains goroutines for sequential mode.
	prev chan struct{}
	cbMu sync.Mutex
}

// NewBatch starts a batch bounded by the dispatcher's timeout.
func (d *Dispatcher) NewBatch(ctx context.Context) *Batch {
	var cancel context.CancelFunc
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	return &Batch{d: d, ctx: ctx, cancel: cancel}
}

// Launch begins executing a call. It never blocks the caller: the stream
// reader keeps consuming events while the call runs.
func (b *Batch) Launch(call strand.ToolCall) {
	b.mu.Lock()
	slot := len(b.results)
	b.calls = append(b.calls, call)
	b.results = append(b.results, strand.ToolResult{ToolCallID: call.ID})
	var waitFor chan struct{}
	done := make(chan struct{})
	if !b.d.concurrent {
		waitFor = b.prev
		b.prev = done
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(done)
		if waitFor != nil {
			<-waitFor
		}

		if target := b.d.target(call); target != "" {
			unlock := b.d.targets.lock(target)
			defer unlock()
		}

		result := b.execute(call)

		b.mu.Lock()
		b.results[slot] = result
		b.mu.Unlock()

		if b.d.onResult != nil {
			b.cbMu.Lock()
			b.d.onResult(call, result)
			b.cbMu.Unlock()
		}
	}()
}

// execute runs one call and converts every failure mode into an error
// result, so the batch always produces exactly one result per call.
func (b *Batch) execute(call strand.ToolCall) strand.ToolResult {
	type outcome struct {
		result strand.ToolResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := b.d.exec.Execute(b.ctx, call)
		ch <- outcome{result: r, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			execErr := &strand.ToolExecutionError{Tool: call.Name, ID: call.ID, Err: o.err}
			b.d.logger.Warn("tool execution failed", "tool", call.Name, "id", call.ID, "error", o.err)
			return strand.ToolResult{
				ToolCallID: call.ID,
				Content:    execErr.Error(),
				IsError:    true,
			}
		}
		return o.result

	case <-b.ctx.Done():
		b.d.logger.Warn("tool execution cut off", "tool", call.Name, "id", call.ID, "cause", b.ctx.Err())
		return strand.ToolResult{
			ToolCallID: call.ID,
			Content:    "tool execution aborted: " + b.ctx.Err().Error(),
			IsError:    true,
		}
	}
}

// Len returns the number of launched calls.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Calls returns the launched calls in launch order.
func (b *Batch) Calls() []strand.ToolCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]strand.ToolCall, len(b.calls))
	copy(out, b.calls)
	return out
}

// Wait blocks until every launched call has finished and returns the
// results in launch order.
func (b *Batch) Wait() []strand.ToolResult {
	b.wg.Wait()
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]strand.ToolResult, len(b.results))
	copy(out, b.results)
	return out
}

// keyedLocks hands out one mutex per target key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
