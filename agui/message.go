package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/strandworks/strand"
)

// Role constants matching the AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToTurns converts AG-UI messages into conversation turns. Tool messages
// become user turns carrying tool_result blocks, matching the tool-calling
// exchange shape the runtime maintains.
func ToTurns(msgs []events.Message) []strand.Turn {
	result := make([]strand.Turn, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToTurn(msg))
	}
	return result
}

// ToTurn converts a single AG-UI message to a turn.
func ToTurn(msg events.Message) strand.Turn {
	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}

	if msg.ToolCallID != nil {
		return strand.NewToolResultTurn(strand.ToolResult{
			ToolCallID: *msg.ToolCallID,
			Content:    content,
		})
	}

	var blocks []strand.Block
	if content != "" {
		blocks = append(blocks, strand.NewTextBlock(content))
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, strand.NewToolUseBlock(strand.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}))
	}

	turn := strand.Turn{
		ID:     msg.ID,
		Role:   toRole(msg.Role),
		Blocks: blocks,
	}
	if turn.ID == "" {
		turn.ID = strand.GenerateTurnID()
	}
	return turn
}

// FromTurns converts conversation turns to AG-UI messages for state
// snapshots. A turn with several tool results fans out into one tool
// message per result.
func FromTurns(turns []strand.Turn) []events.Message {
	var result []events.Message
	for _, turn := range turns {
		result = append(result, FromTurn(turn)...)
	}
	return result
}

// FromTurn converts a single turn. Most turns yield one message; turns
// holding tool results yield one per result.
func FromTurn(turn strand.Turn) []events.Message {
	if results := turn.ToolResults(); len(results) > 0 {
		msgs := make([]events.Message, len(results))
		for i := range results {
			content := results[i].Content
			callID := results[i].ToolCallID
			msgs[i] = events.Message{
				ID:         events.GenerateMessageID(),
				Role:       RoleTool,
				ToolCallID: &callID,
				Content:    &content,
			}
		}
		return msgs
	}

	msg := events.Message{
		ID:   events.GenerateMessageID(),
		Role: fromRole(turn.Role),
	}
	if text := turn.Text(); text != "" {
		msg.Content = &text
	}
	if calls := turn.ToolCalls(); len(calls) > 0 {
		msg.ToolCalls = make([]events.ToolCall, len(calls))
		for i, tc := range calls {
			msg.ToolCalls[i] = events.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: events.Function{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			}
		}
	}
	return []events.Message{msg}
}

func toRole(role string) strand.Role {
	switch role {
	case RoleAssistant:
		return strand.RoleAssistant
	case RoleSystem:
		return strand.RoleSystem
	default:
		return strand.RoleUser
	}
}

func fromRole(role strand.Role) string {
	switch role {
	case strand.RoleAssistant:
		return RoleAssistant
	case strand.RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}
