package strand

import "github.com/google/uuid"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// BlockType discriminates the content block kinds that make up a turn.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one semantically typed segment of a turn. Exactly one of the
// payload fields is populated, selected by Type.
type Block struct {
	Type BlockType `json:"type"`
	// Text holds the content for text and thinking blocks.
	Text string `json:"text,omitempty"`
	// ToolCall is set for tool_use blocks.
	ToolCall *ToolCall `json:"toolCall,omitempty"`
	// ToolResult is set for tool_result blocks.
	ToolResult *ToolResult `json:"toolResult,omitempty"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// NewThinkingBlock creates a thinking block.
func NewThinkingBlock(text string) Block {
	return Block{Type: BlockThinking, Text: text}
}

// NewToolUseBlock creates a tool_use block for the given call.
func NewToolUseBlock(call ToolCall) Block {
	return Block{Type: BlockToolUse, ToolCall: &call}
}

// NewToolResultBlock creates a tool_result block for the given result.
func NewToolResultBlock(result ToolResult) Block {
	return Block{Type: BlockToolResult, ToolResult: &result}
}

// Turn is one role-tagged unit of conversation history composed of ordered
// content blocks.
type Turn struct {
	// ID is an optional unique identifier for the turn.
	ID     string  `json:"id,omitempty"`
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
}

// GenerateTurnID creates a unique turn identifier.
func GenerateTurnID() string {
	return "turn-" + uuid.New().String()
}

// NewUserTurn creates a user turn with a single text block.
func NewUserTurn(text string) Turn {
	return Turn{ID: GenerateTurnID(), Role: RoleUser, Blocks: []Block{NewTextBlock(text)}}
}

// NewAssistantTurn creates an assistant turn from the given blocks.
func NewAssistantTurn(blocks ...Block) Turn {
	return Turn{ID: GenerateTurnID(), Role: RoleAssistant, Blocks: blocks}
}

// NewToolResultTurn creates the user turn that answers an assistant turn's
// tool calls. Tool result blocks are listed before any other block type, as
// required by the tool-calling contract.
func NewToolResultTurn(results ...ToolResult) Turn {
	blocks := make([]Block, len(results))
	for i, r := range results {
		blocks[i] = NewToolResultBlock(r)
	}
	return Turn{ID: GenerateTurnID(), Role: RoleUser, Blocks: blocks}
}

// Text concatenates the content of all text blocks in the turn.
func (t Turn) Text() string {
	var out string
	for _, b := range t.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolCalls returns the calls from the turn's tool_use blocks in block order.
func (t Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range t.Blocks {
		if b.Type == BlockToolUse && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// ToolResults returns the results from the turn's tool_result blocks in
// block order.
func (t Turn) ToolResults() []ToolResult {
	var results []ToolResult
	for _, b := range t.Blocks {
		if b.Type == BlockToolResult && b.ToolResult != nil {
			results = append(results, *b.ToolResult)
		}
	}
	return results
}

// HasToolCalls reports whether the turn contains at least one tool_use block.
func (t Turn) HasToolCalls() bool {
	for _, b := range t.Blocks {
		if b.Type == BlockToolUse {
			return true
		}
	}
	return false
}

// Usage contains token usage information for one model call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is the fully assembled outcome of one streamed model call.
type Response struct {
	// Turn is the assistant turn assembled from the stream.
	Turn Turn `json:"turn"`
	// StopReason is the provider's stop reason, e.g. "end_turn" or "tool_use".
	StopReason string `json:"stopReason,omitempty"`
	Usage      Usage  `json:"usage"`
}
