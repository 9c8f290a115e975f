package a2a

import (
	"github.com/strandworks/strand"
)

// ToTurns converts A2A messages to conversation turns.
func ToTurns(msgs []Message) []strand.Turn {
	result := make([]strand.Turn, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToTurn(msg))
	}
	return result
}

// ToTurn converts a single A2A message to a turn. Text parts become text
// blocks; data parts carrying tool_call or tool_result payloads become the
// corresponding blocks, so a history exported with FromTurns survives the
// round trip.
func ToTurn(msg Message) strand.Turn {
	turn := strand.Turn{
		ID:   msg.MessageID,
		Role: toRole(msg.Role),
	}

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case TextPart:
			turn.Blocks = append(turn.Blocks, strand.NewTextBlock(p.Text))
		case DataPart:
			data, ok := p.Data.(map[string]any)
			if !ok {
				continue
			}
			if call, ok := decodeToolCall(data); ok {
				turn.Blocks = append(turn.Blocks, strand.NewToolUseBlock(call))
			}
			if result, ok := decodeToolResult(data); ok {
				turn.Blocks = append(turn.Blocks, strand.NewToolResultBlock(result))
			}
		}
	}

	// A message that carries tool calls came from the model regardless of
	// the declared role.
	if turn.HasToolCalls() {
		turn.Role = strand.RoleAssistant
	}
	return turn
}

// FromTurns converts conversation turns to A2A messages for task history.
func FromTurns(turns []strand.Turn) []Message {
	result := make([]Message, 0, len(turns))
	for _, turn := range turns {
		result = append(result, FromTurn(turn))
	}
	return result
}

// FromTurn converts a single turn. Tool calls and results ride as data
// parts, the A2A escape hatch for structured payloads.
func FromTurn(turn strand.Turn) Message {
	msg := NewMessage(fromRole(turn.Role))
	if turn.ID != "" {
		msg.MessageID = turn.ID
	}

	var parts []Part
	for _, block := range turn.Blocks {
		switch block.Type {
		case strand.BlockText:
			parts = append(parts, NewTextPart(block.Text))
		case strand.BlockToolUse:
			parts = append(parts, NewDataPart(map[string]any{
				"type": "tool_call",
				"tool_call": map[string]any{
					"id":        block.ToolCall.ID,
					"name":      block.ToolCall.Name,
					"arguments": block.ToolCall.Arguments,
				},
			}))
		case strand.BlockToolResult:
			parts = append(parts, NewDataPart(map[string]any{
				"type": "tool_result",
				"tool_result": map[string]any{
					"tool_call_id": block.ToolResult.ToolCallID,
					"content":      block.ToolResult.Content,
					"is_error":     block.ToolResult.IsError,
				},
			}))
		}
	}
	msg.Parts = parts
	return msg
}

func toRole(role MessageRole) strand.Role {
	if role == MessageRoleAgent {
		return strand.RoleAssistant
	}
	return strand.RoleUser
}

func fromRole(role strand.Role) MessageRole {
	if role == strand.RoleAssistant {
		return MessageRoleAgent
	}
	return MessageRoleUser
}

func decodeToolCall(data map[string]any) (strand.ToolCall, bool) {
	if data["type"] != "tool_call" {
		return strand.ToolCall{}, false
	}
	tc, ok := data["tool_call"].(map[string]any)
	if !ok {
		return strand.ToolCall{}, false
	}

	id, _ := tc["id"].(string)
	name, _ := tc["name"].(string)
	args, _ := tc["arguments"].(string)
	return strand.ToolCall{ID: id, Name: name, Arguments: args}, true
}

func decodeToolResult(data map[string]any) (strand.ToolResult, bool) {
	if data["type"] != "tool_result" {
		return strand.ToolResult{}, false
	}
	tr, ok := data["tool_result"].(map[string]any)
	if !ok {
		return strand.ToolResult{}, false
	}

	callID, _ := tr["tool_call_id"].(string)
	content, _ := tr["content"].(string)
	isError, _ := tr["is_error"].(bool)
	return strand.ToolResult{ToolCallID: callID, Content: content, IsError: isError}, true
}
