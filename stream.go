package strand

// EventKind identifies the kind of a wire-level streaming event.
type EventKind string

const (
	EventMessageStart EventKind = "message_start"
	EventBlockStart   EventKind = "content_block_start"
	EventBlockDelta   EventKind = "content_block_delta"
	EventBlockStop    EventKind = "content_block_stop"
	EventMessageDelta EventKind = "message_delta"
	EventMessageStop  EventKind = "message_stop"
)

// ContentBlock describes a content block opened by a content_block_start
// event. ID and Name are only set for tool_use blocks.
type ContentBlock struct {
	Type BlockType `json:"type"`
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name,omitempty"`
}

// DeltaType discriminates the payload of a content_block_delta event.
type DeltaType string

const (
	DeltaText      DeltaType = "text_delta"
	DeltaThinking  DeltaType = "thinking_delta"
	DeltaInputJSON DeltaType = "input_json_delta"
)

// Delta carries the incremental payload of a content_block_delta event.
// The field matching Type is populated; the others are empty.
type Delta struct {
	Type DeltaType `json:"type"`
	// Text is the fragment for text_delta.
	Text string `json:"text,omitempty"`
	// Thinking is the fragment for thinking_delta.
	Thinking string `json:"thinking,omitempty"`
	// PartialJSON is the (possibly empty) tool-argument fragment for
	// input_json_delta.
	PartialJSON string `json:"partial_json,omitempty"`
}

// StreamEvent is one typed event decoded from a model response stream.
// Index correlates content_block_start, content_block_delta and
// content_block_stop events for the same block.
type StreamEvent struct {
	Kind  EventKind
	Index int
	// Block is set for content_block_start events.
	Block *ContentBlock
	// Delta is set for content_block_delta events.
	Delta *Delta
	// StopReason is set on message_delta events when the provider reports
	// why the message ended (e.g. "end_turn", "tool_use", "max_tokens").
	StopReason string
	// Usage is set on message_start and message_delta events when the
	// provider reports token accounting.
	Usage *Usage
}
