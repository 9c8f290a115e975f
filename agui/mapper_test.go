package agui

import (
	"errors"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/event"
)

func TestNewMapper(t *testing.T) {
	t.Run("keeps provided IDs", func(t *testing.T) {
		m := NewMapper("thread-123", "run-456")
		assert.Equal(t, "thread-123", m.ThreadID())
		assert.Equal(t, "run-456", m.RunID())
	})

	t.Run("generates IDs when empty", func(t *testing.T) {
		m := NewMapper("", "")
		assert.NotEmpty(t, m.ThreadID())
		assert.NotEmpty(t, m.RunID())
	})
}

func TestMapEventRunLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	tests := []struct {
		name string
		in   event.Event
		want events.EventType
	}{
		{"run start", event.Event{Type: event.RunStart}, events.EventTypeRunStarted},
		{"run end", event.Event{Type: event.RunEnd}, events.EventTypeRunFinished},
		{"run error", event.Event{Type: event.RunError, Error: errors.New("boom")}, events.EventTypeRunError},
		{"iteration start", event.Event{Type: event.IterationStart, Iteration: 2}, events.EventTypeStepStarted},
		{"iteration end", event.Event{Type: event.IterationEnd, Iteration: 2}, events.EventTypeStepFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.MapEvent(tt.in)
			require.NotNil(t, out)
			assert.Equal(t, tt.want, out.Type())
		})
	}
}

func TestMapEventMessageLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	start := m.MapEvent(event.Event{Type: event.MessageStart})
	require.NotNil(t, start)
	assert.Equal(t, events.EventTypeTextMessageStart, start.Type())

	delta := m.MapEvent(event.Event{Type: event.MessageDelta, Delta: "Hello"})
	require.NotNil(t, delta)
	assert.Equal(t, events.EventTypeTextMessageContent, delta.Type())

	end := m.MapEvent(event.Event{Type: event.MessageEnd})
	require.NotNil(t, end)
	assert.Equal(t, events.EventTypeTextMessageEnd, end.Type())
}

func TestMapEventEmptyDeltaIsDropped(t *testing.T) {
	m := NewMapper("thread-1", "run-1")
	assert.Nil(t, m.MapEvent(event.Event{Type: event.MessageDelta}))
}

func TestMapEventToolCallLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")
	call := &strand.ToolCall{ID: "t1", Name: "read_file", Arguments: `{"path":"a.txt"}`}

	start := m.MapEvent(event.Event{Type: event.ToolCallStart, ToolCall: call})
	require.NotNil(t, start)
	assert.Equal(t, events.EventTypeToolCallStart, start.Type())

	// Arguments complete as one args event: they never stream to AG-UI
	// fragment by fragment.
	ready := m.MapEvent(event.Event{Type: event.ToolCallReady, ToolCall: call})
	require.NotNil(t, ready)
	assert.Equal(t, events.EventTypeToolCallArgs, ready.Type())

	executing := m.MapEvent(event.Event{Type: event.ToolCallExecuting, ToolCall: call})
	require.NotNil(t, executing)
	assert.Equal(t, events.EventTypeToolCallEnd, executing.Type())

	result := m.MapEvent(event.Event{
		Type:       event.ToolCallResult,
		ToolCall:   call,
		ToolResult: &strand.ToolResult{ToolCallID: "t1", Content: "file contents"},
	})
	require.NotNil(t, result)
	assert.Equal(t, events.EventTypeToolCallResult, result.Type())
}

func TestMapEventNilPayloadsReturnNil(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	assert.Nil(t, m.MapEvent(event.Event{Type: event.ToolCallStart}))
	assert.Nil(t, m.MapEvent(event.Event{Type: event.ToolCallReady}))
	assert.Nil(t, m.MapEvent(event.Event{Type: event.ToolCallResult}))
}
