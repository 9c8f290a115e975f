package strand

import (
	"encoding/json"
	"fmt"
)

// Tool defines a capability the model can request by name.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string
	// Description explains what the tool does (helps the model decide when to use it).
	Description string
	// Parameters is a JSON Schema object defining the tool's arguments.
	Parameters json.RawMessage
}

// ToolCall is a structured request from the model to invoke a tool.
type ToolCall struct {
	// ID is a unique identifier for this call (used to correlate results).
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Arguments is a JSON string containing the arguments to pass.
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of executing a tool call, correlated back to
// the originating call by ToolCallID.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Content    string `json:"content"`
	IsError    bool   `json:"isError,omitempty"`
}

// ValidateExchange checks the tool-calling contract between an assistant
// turn and the user turn that follows it: every tool_use id has exactly one
// matching tool_result, and tool_result blocks are listed before any other
// block type in the user turn.
func ValidateExchange(assistant, user Turn) error {
	if assistant.Role != RoleAssistant {
		return fmt.Errorf("exchange must start with an assistant turn, got %q", assistant.Role)
	}
	if user.Role != RoleUser {
		return fmt.Errorf("tool results must arrive in a user turn, got %q", user.Role)
	}

	calls := assistant.ToolCalls()
	results := user.ToolResults()

	if len(calls) != len(results) {
		return fmt.Errorf("assistant turn has %d tool calls but user turn has %d tool results", len(calls), len(results))
	}

	// tool_result blocks must be the first entries of the user turn.
	for i := 0; i < len(results); i++ {
		if user.Blocks[i].Type != BlockToolResult {
			return fmt.Errorf("block %d of the user turn is %q, want tool_result first", i, user.Blocks[i].Type)
		}
	}

	want := make(map[string]int, len(calls))
	for _, c := range calls {
		want[c.ID]++
	}
	for _, r := range results {
		if want[r.ToolCallID] == 0 {
			return fmt.Errorf("tool result %q has no matching tool call", r.ToolCallID)
		}
		want[r.ToolCallID]--
	}
	return nil
}
