// Package mcp bridges the runtime's tool layer and the Model Context
// Protocol, in both directions:
//
//   - RemoteRegistry connects to an MCP server and exposes its tools as a
//     tool.Executor, so the dispatcher can launch remote calls exactly like
//     local ones.
//   - NewServer and ServeStdio expose a local tool.Registry to MCP clients.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strandworks/strand"
)

// ToMCPTool converts a tool declaration to its MCP form. The parameter
// schema travels as the raw input schema.
func ToMCPTool(t strand.Tool) mcp.Tool {
	return mcp.NewToolWithRawSchema(t.Name, t.Description, t.Parameters)
}

// FromMCPTool converts an MCP tool to a runtime declaration, preferring the
// raw schema when the server provides one.
func FromMCPTool(t mcp.Tool) strand.Tool {
	var schema json.RawMessage
	if len(t.RawInputSchema) > 0 {
		schema = t.RawInputSchema
	} else if data, err := json.Marshal(t.InputSchema); err == nil {
		schema = data
	}

	return strand.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// toCallRequest maps a tool call onto an MCP call request. Arguments that
// are not valid JSON travel as a plain string.
func toCallRequest(call strand.ToolCall) mcp.CallToolRequest {
	var args any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = call.Arguments
		}
	}

	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      call.Name,
			Arguments: args,
		},
	}
}

// fromCallResult flattens an MCP call result into a tool result. Text
// content concatenates; non-text and structured content is JSON-encoded.
func fromCallResult(callID string, result *mcp.CallToolResult) strand.ToolResult {
	if result == nil {
		return strand.ToolResult{
			ToolCallID: callID,
			IsError:    true,
		}
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}

	return strand.ToolResult{
		ToolCallID: callID,
		Content:    strings.Join(parts, "\n"),
		IsError:    result.IsError,
	}
}

// toCallResult maps a tool result back to the MCP form, for the server side.
func toCallResult(result strand.ToolResult) *mcp.CallToolResult {
	if result.IsError {
		return mcp.NewToolResultError(result.Content)
	}
	return mcp.NewToolResultText(result.Content)
}
