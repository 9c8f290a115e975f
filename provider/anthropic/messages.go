package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/strandworks/strand"
)

// convertTurns maps conversation turns onto SDK message params. Thinking
// blocks are dropped: they cannot be replayed without their signatures.
func convertTurns(turns []strand.Turn) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, turn := range turns {
		var blocks []anthropic.ContentBlockParamUnion
		for _, block := range turn.Blocks {
			switch block.Type {
			case strand.BlockText:
				// The API rejects empty text blocks.
				if block.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(block.Text))
				}
			case strand.BlockToolUse:
				if block.ToolCall == nil {
					continue
				}
				var input any
				json.Unmarshal([]byte(block.ToolCall.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(block.ToolCall.ID, input, block.ToolCall.Name))
			case strand.BlockToolResult:
				if block.ToolResult == nil {
					continue
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(
					block.ToolResult.ToolCallID, block.ToolResult.Content, block.ToolResult.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if turn.Role == strand.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		result = append(result, anthropic.MessageParam{
			Role:    role,
			Content: blocks,
		})
	}

	return result
}

func convertTools(tools []strand.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if len(t.Parameters) > 0 {
			json.Unmarshal(t.Parameters, &schema)
		}

		var required []string
		if reqVal, ok := schema["required"].([]any); ok {
			for _, r := range reqVal {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   required,
				},
			},
		}
	}
	return result
}
