package agui

import (
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand"
)

func TestToTurn(t *testing.T) {
	t.Run("user message", func(t *testing.T) {
		content := "Hello"
		turn := ToTurn(events.Message{ID: "msg-1", Role: RoleUser, Content: &content})

		assert.Equal(t, strand.RoleUser, turn.Role)
		assert.Equal(t, "Hello", turn.Text())
	})

	t.Run("assistant message with tool calls", func(t *testing.T) {
		turn := ToTurn(events.Message{
			ID:   "msg-2",
			Role: RoleAssistant,
			ToolCalls: []events.ToolCall{{
				ID:   "t1",
				Type: "function",
				Function: events.Function{
					Name:      "read_file",
					Arguments: `{"path":"a.txt"}`,
				},
			}},
		})

		assert.Equal(t, strand.RoleAssistant, turn.Role)
		calls := turn.ToolCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "t1", calls[0].ID)
		assert.Equal(t, "read_file", calls[0].Name)
	})

	t.Run("tool message becomes a tool result turn", func(t *testing.T) {
		content := "file contents"
		callID := "t1"
		turn := ToTurn(events.Message{
			ID:         "msg-3",
			Role:       RoleTool,
			Content:    &content,
			ToolCallID: &callID,
		})

		assert.Equal(t, strand.RoleUser, turn.Role)
		results := turn.ToolResults()
		require.Len(t, results, 1)
		assert.Equal(t, "t1", results[0].ToolCallID)
		assert.Equal(t, "file contents", results[0].Content)
	})
}

func TestFromTurns(t *testing.T) {
	turns := []strand.Turn{
		strand.NewUserTurn("write both files"),
		strand.NewAssistantTurn(
			strand.NewTextBlock("Writing."),
			strand.NewToolUseBlock(strand.ToolCall{ID: "t1", Name: "write_file", Arguments: `{"path":"a.txt"}`}),
		),
		strand.NewToolResultTurn(
			strand.ToolResult{ToolCallID: "t1", Content: "ok"},
			strand.ToolResult{ToolCallID: "t2", Content: "ok"},
		),
	}

	msgs := FromTurns(turns)
	// The result turn fans out into one tool message per result.
	require.Len(t, msgs, 4)

	assert.Equal(t, RoleUser, msgs[0].Role)
	require.NotNil(t, msgs[0].Content)
	assert.Equal(t, "write both files", *msgs[0].Content)

	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "write_file", msgs[1].ToolCalls[0].Function.Name)

	assert.Equal(t, RoleTool, msgs[2].Role)
	require.NotNil(t, msgs[2].ToolCallID)
	assert.Equal(t, "t1", *msgs[2].ToolCallID)
	assert.Equal(t, RoleTool, msgs[3].Role)
	require.NotNil(t, msgs[3].ToolCallID)
	assert.Equal(t, "t2", *msgs[3].ToolCallID)
}

func TestTurnMessageRoundTrip(t *testing.T) {
	original := strand.NewAssistantTurn(
		strand.NewTextBlock("Done."),
		strand.NewToolUseBlock(strand.ToolCall{ID: "t1", Name: "search", Arguments: `{"query":"go"}`}),
	)

	msgs := FromTurn(original)
	require.Len(t, msgs, 1)
	back := ToTurn(msgs[0])

	assert.Equal(t, original.Role, back.Role)
	assert.Equal(t, original.Text(), back.Text())
	require.Len(t, back.ToolCalls(), 1)
	assert.Equal(t, original.ToolCalls()[0], back.ToolCalls()[0])
}
