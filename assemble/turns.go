package assemble

import (
	"log/slog"

	"github.com/strandworks/strand"
)

// ToolResultTurn builds the user turn answering a batch of dispatched tool
// calls. Results are emitted in the same order as the originating calls and
// are the first blocks of the turn.
//
// Every dispatched tool_use must be answered: a call with no matching
// result poisons the next model call, so one is synthesized as an error
// result and logged rather than omitted.
func ToolResultTurn(calls []strand.ToolCall, results []strand.ToolResult, logger *slog.Logger) strand.Turn {
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[string]strand.ToolResult, len(results))
	for _, r := range results {
		byID[r.ToolCallID] = r
	}

	ordered := make([]strand.ToolResult, 0, len(calls))
	for _, call := range calls {
		r, ok := byID[call.ID]
		if !ok {
			logger.Warn("synthesizing missing tool result", "id", call.ID, "tool", call.Name)
			r = strand.ToolResult{
				ToolCallID: call.ID,
				Content:    "tool execution produced no result",
				IsError:    true,
			}
		}
		ordered = append(ordered, r)
	}

	return strand.NewToolResultTurn(ordered...)
}
