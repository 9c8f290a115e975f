package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand"
)

func TestToTurn(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		msg := NewMessage(MessageRoleUser, NewTextPart("hello"))
		turn := ToTurn(msg)

		assert.Equal(t, strand.RoleUser, turn.Role)
		assert.Equal(t, "hello", turn.Text())
	})

	t.Run("tool call data part forces the assistant role", func(t *testing.T) {
		msg := NewMessage(MessageRoleUser, NewDataPart(map[string]any{
			"type": "tool_call",
			"tool_call": map[string]any{
				"id":        "t1",
				"name":      "read_file",
				"arguments": `{"path":"a.txt"}`,
			},
		}))
		turn := ToTurn(msg)

		assert.Equal(t, strand.RoleAssistant, turn.Role)
		calls := turn.ToolCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "read_file", calls[0].Name)
	})

	t.Run("tool result data part", func(t *testing.T) {
		msg := NewMessage(MessageRoleUser, NewDataPart(map[string]any{
			"type": "tool_result",
			"tool_result": map[string]any{
				"tool_call_id": "t1",
				"content":      "ok",
				"is_error":     false,
			},
		}))
		turn := ToTurn(msg)

		results := turn.ToolResults()
		require.Len(t, results, 1)
		assert.Equal(t, "t1", results[0].ToolCallID)
		assert.Equal(t, "ok", results[0].Content)
	})
}

func TestTurnRoundTrip(t *testing.T) {
	turns := []strand.Turn{
		strand.NewUserTurn("write the file"),
		strand.NewAssistantTurn(
			strand.NewTextBlock("Writing."),
			strand.NewToolUseBlock(strand.ToolCall{ID: "t1", Name: "write_file", Arguments: `{"path":"a.txt"}`}),
		),
		strand.NewToolResultTurn(strand.ToolResult{ToolCallID: "t1", Content: "ok"}),
	}

	back := ToTurns(FromTurns(turns))
	require.Len(t, back, 3)

	assert.Equal(t, "write the file", back[0].Text())
	assert.Equal(t, strand.RoleAssistant, back[1].Role)
	assert.Equal(t, turns[1].ToolCalls(), back[1].ToolCalls())
	assert.Equal(t, turns[2].ToolResults(), back[2].ToolResults())
}

func TestMessageUnmarshalParts(t *testing.T) {
	raw := `{
		"kind": "message",
		"messageId": "m1",
		"role": "agent",
		"parts": [
			{"kind": "text", "text": "done"},
			{"kind": "file", "file": {"name": "a.txt", "uri": "file:///a.txt"}},
			{"kind": "data", "data": {"k": "v"}}
		]
	}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	require.Len(t, msg.Parts, 3)
	assert.IsType(t, TextPart{}, msg.Parts[0])
	assert.IsType(t, FilePart{}, msg.Parts[1])
	assert.IsType(t, DataPart{}, msg.Parts[2])
	assert.Equal(t, "done", msg.TextContent())
}

func TestTaskStateTerminal(t *testing.T) {
	assert.True(t, TaskStateCompleted.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.False(t, TaskStateWorking.Terminal())
	assert.False(t, TaskStateInputRequired.Terminal())
}
