// Package assemble turns decoded stream events into tool calls and
// conversation turns.
//
// The Assembler consumes one response's events strictly in arrival order.
// Every content block kind flows through the same indexed accumulate/close
// path; tool_use blocks additionally drive a ToolCallBuffer whose "ready"
// hook fires the moment the block closes, while later blocks of the same
// response are still streaming. That hook is the seam that lets tool
// execution overlap stream consumption.
package assemble

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/strandworks/strand"
)

// Hooks receive assembler notifications. All hooks are invoked
// synchronously from Feed; a nil hook is skipped.
type Hooks struct {
	// OnToolDetected fires as soon as a tool_use block opens, before any
	// arguments have arrived.
	OnToolDetected func(id, name string, seq int)
	// OnToolReady fires when a tool_use block closes with parseable
	// arguments. Execution may begin immediately.
	OnToolReady func(call strand.ToolCall, seq int)
	// OnToolError fires when a tool_use block closes with unparseable
	// arguments.
	OnToolError func(id, name string, err error)
	// OnTextDelta fires for each text fragment.
	OnTextDelta func(index int, text string)
	// OnThinkingDelta fires for each thinking fragment.
	OnThinkingDelta func(index int, text string)
}

type blockState struct {
	index  int
	typ    strand.BlockType
	text   strings.Builder
	buffer *ToolCallBuffer
	closed bool
}

// Assembler builds content blocks and tool-call buffers from a single
// response's stream events. It is not safe for concurrent use: the stream
// has exactly one sequential reader, and correctness depends on events for
// a given index arriving in order.
type Assembler struct {
	blocks  map[int]*blockState
	buffers map[string]*ToolCallBuffer

	seq        int
	hooks      Hooks
	logger     *slog.Logger
	stopReason string
	usage      strand.Usage
	done       bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithHooks sets the notification hooks.
func WithHooks(h Hooks) Option {
	return func(a *Assembler) {
		a.hooks = h
	}
}

// WithLogger sets the logger for dropped-event diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// New creates an Assembler for one model response.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		blocks:  make(map[int]*blockState),
		buffers: make(map[string]*ToolCallBuffer),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Feed processes one stream event. Malformed provider output is dropped
// with a log line; Feed never panics and never fails the stream.
func (a *Assembler) Feed(ev strand.StreamEvent) {
	switch ev.Kind {
	case strand.EventMessageStart:
		if ev.Usage != nil {
			a.usage.InputTokens += ev.Usage.InputTokens
			a.usage.OutputTokens += ev.Usage.OutputTokens
		}

	case strand.EventBlockStart:
		a.startBlock(ev)

	case strand.EventBlockDelta:
		a.appendDelta(ev)

	case strand.EventBlockStop:
		a.closeBlock(ev.Index)

	case strand.EventMessageDelta:
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}
		if ev.Usage != nil {
			a.usage.InputTokens += ev.Usage.InputTokens
			a.usage.OutputTokens += ev.Usage.OutputTokens
		}

	case strand.EventMessageStop:
		a.done = true
	}
}

func (a *Assembler) startBlock(ev strand.StreamEvent) {
	if ev.Block == nil {
		a.logger.Warn("dropping block_start without descriptor", "index", ev.Index)
		return
	}
	if _, exists := a.blocks[ev.Index]; exists {
		a.logger.Warn("dropping duplicate block_start", "index", ev.Index)
		return
	}

	state := &blockState{index: ev.Index, typ: ev.Block.Type}

	if ev.Block.Type == strand.BlockToolUse {
		// Malformed provider output: a tool block without id or name can
		// never be correlated or executed. Drop it, never crash.
		if ev.Block.ID == "" || ev.Block.Name == "" {
			a.logger.Warn("dropping tool_use block with missing id or name",
				"index", ev.Index, "id", ev.Block.ID, "name", ev.Block.Name)
			return
		}
		if _, dup := a.buffers[ev.Block.ID]; dup {
			a.logger.Warn("dropping tool_use block with duplicate id",
				"index", ev.Index, "id", ev.Block.ID)
			return
		}

		buf := &ToolCallBuffer{
			ID:         ev.Block.ID,
			Name:       ev.Block.Name,
			BlockIndex: ev.Index,
			Seq:        a.seq,
		}
		a.seq++
		a.buffers[buf.ID] = buf
		state.buffer = buf

		if a.hooks.OnToolDetected != nil {
			a.hooks.OnToolDetected(buf.ID, buf.Name, buf.Seq)
		}
	}

	a.blocks[ev.Index] = state
}

func (a *Assembler) appendDelta(ev strand.StreamEvent) {
	if ev.Delta == nil {
		return
	}
	state, ok := a.blocks[ev.Index]
	if !ok {
		a.logger.Warn("dropping delta for unknown block", "index", ev.Index)
		return
	}
	if state.closed {
		a.logger.Warn("dropping delta for closed block", "index", ev.Index)
		return
	}

	switch ev.Delta.Type {
	case strand.DeltaInputJSON:
		if state.buffer == nil {
			a.logger.Warn("dropping input_json_delta for non-tool block", "index", ev.Index)
			return
		}
		// Empty fragments are valid and common.
		state.buffer.append(ev.Delta.PartialJSON)

	case strand.DeltaText:
		state.text.WriteString(ev.Delta.Text)
		if a.hooks.OnTextDelta != nil {
			a.hooks.OnTextDelta(ev.Index, ev.Delta.Text)
		}

	case strand.DeltaThinking:
		state.text.WriteString(ev.Delta.Thinking)
		if a.hooks.OnThinkingDelta != nil {
			a.hooks.OnThinkingDelta(ev.Index, ev.Delta.Thinking)
		}
	}
}

func (a *Assembler) closeBlock(index int) {
	state, ok := a.blocks[index]
	if !ok {
		a.logger.Warn("dropping block_stop for unknown block", "index", index)
		return
	}
	if state.closed {
		return
	}
	state.closed = true

	buf := state.buffer
	if buf == nil {
		return
	}

	payload := buf.Payload()
	if payload == "" {
		a.logger.Warn("tool call closed with empty arguments, substituting empty object",
			"id", buf.ID, "tool", buf.Name)
		payload = "{}"
		buf.append("{}")
	}

	if !json.Valid([]byte(payload)) {
		if err := buf.Advance(StatusError); err != nil {
			a.logger.Warn("tool buffer status violation", "id", buf.ID, "error", err)
		}
		if a.hooks.OnToolError != nil {
			a.hooks.OnToolError(buf.ID, buf.Name, &strand.ToolArgumentError{
				Tool:   buf.Name,
				Reason: "accumulated arguments are not valid JSON",
			})
		}
		return
	}

	if err := buf.Advance(StatusReady); err != nil {
		a.logger.Warn("tool buffer status violation", "id", buf.ID, "error", err)
		return
	}

	// Synchronous by design: execution may begin while later blocks of
	// this same response are still streaming.
	if a.hooks.OnToolReady != nil {
		a.hooks.OnToolReady(strand.ToolCall{ID: buf.ID, Name: buf.Name, Arguments: payload}, buf.Seq)
	}
}

// Done reports whether message_stop has been seen.
func (a *Assembler) Done() bool {
	return a.done
}

// StopReason returns the provider's reported stop reason, if any.
func (a *Assembler) StopReason() string {
	return a.stopReason
}

// Usage returns the accumulated token usage for the response.
func (a *Assembler) Usage() strand.Usage {
	return a.usage
}

// Buffer returns the tool-call buffer with the given id.
func (a *Assembler) Buffer(id string) (*ToolCallBuffer, bool) {
	buf, ok := a.buffers[id]
	return buf, ok
}

// Buffers returns all tool-call buffers in sequence order.
func (a *Assembler) Buffers() []*ToolCallBuffer {
	bufs := make([]*ToolCallBuffer, 0, len(a.buffers))
	for _, b := range a.buffers {
		bufs = append(bufs, b)
	}
	sort.Slice(bufs, func(i, j int) bool { return bufs[i].Seq < bufs[j].Seq })
	return bufs
}

// Remove discards the buffer with the given id. Removing an unknown or
// already-removed buffer is a no-op.
func (a *Assembler) Remove(id string) {
	buf, ok := a.buffers[id]
	if !ok {
		return
	}
	delete(a.buffers, id)
	delete(a.blocks, buf.BlockIndex)
}

// AssistantTurn assembles the assistant turn for the completed response:
// text blocks first (in index order), then thinking blocks, then one
// tool_use block per successfully closed buffer in sequence order. Buffers
// that failed argument parsing are excluded; their error notifications
// already fired.
func (a *Assembler) AssistantTurn() strand.Turn {
	indices := make([]int, 0, len(a.blocks))
	for idx := range a.blocks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var blocks []strand.Block
	for _, idx := range indices {
		state := a.blocks[idx]
		if state.typ == strand.BlockText && state.text.Len() > 0 {
			blocks = append(blocks, strand.NewTextBlock(state.text.String()))
		}
	}
	for _, idx := range indices {
		state := a.blocks[idx]
		if state.typ == strand.BlockThinking && state.text.Len() > 0 {
			blocks = append(blocks, strand.NewThinkingBlock(state.text.String()))
		}
	}
	for _, buf := range a.Buffers() {
		if buf.Status() == StatusPending || buf.Status() == StatusError {
			continue
		}
		blocks = append(blocks, strand.NewToolUseBlock(strand.ToolCall{
			ID:        buf.ID,
			Name:      buf.Name,
			Arguments: buf.Payload(),
		}))
	}

	return strand.NewAssistantTurn(blocks...)
}
