// Package google adapts the Google GenAI SDK to the runtime's streaming
// client interface. Gemini streams flat response chunks with no block
// structure, so the adapter synthesizes it: one block per text run, one per
// function call, opened and closed as the chunks arrive. Gemini assigns no
// tool-call identifiers of its own; the adapter synthesizes stable ones so
// results can be paired on the way back.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"google.golang.org/genai"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/client"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "gemini-2.0-flash"

// Client implements client.StreamClient over the Google GenAI SDK.
// It reads the API key from the GOOGLE_API_KEY or GEMINI_API_KEY
// environment variable unless WithAPIKey overrides it.
type Client struct {
	client *genai.Client
	model  string
	apiKey string
}

// ClientOption configures the Google client.
type ClientOption func(*Client)

// WithAPIKey sets the API key explicitly instead of using the environment
// variable.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Google GenAI client.
func New(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c.client = sdk
	return c, nil
}

// Stream opens a streamed content generation.
func (c *Client) Stream(ctx context.Context, req client.Request) (client.Stream, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	contents := convertTurns(req.Turns)
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if len(req.Tools) > 0 {
		config.Tools = convertTools(req.Tools)
	}

	next, stop := iter.Pull2(c.client.Models.GenerateContentStream(ctx, model, contents, config))
	return &stream{
		next:      next,
		stop:      stop,
		textIndex: -1,
	}, nil
}

var _ client.StreamClient = (*Client)(nil)

// stream rebuilds block-structured events from response chunks. One chunk
// can yield several events, so translated events queue until Next drains
// them.
type stream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	queue []strand.StreamEvent

	started   bool
	nextIndex int
	// textIndex is the open text block, -1 when none.
	textIndex int
	// callCount numbers synthesized tool-call identifiers across the
	// response.
	callCount int
	toolSeen  bool

	finishReason string
	usage        *strand.Usage
	stopped      bool
}

func (s *stream) Next() (strand.StreamEvent, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}
		if s.stopped {
			return strand.StreamEvent{}, io.EOF
		}

		resp, err, ok := s.next()
		if !ok {
			s.stopped = true
			s.stop()
			s.finish()
			continue
		}
		if err != nil {
			s.stopped = true
			s.stop()
			return strand.StreamEvent{}, &strand.TransportError{Op: "stream", Err: err}
		}
		s.translate(resp)
	}
}

func (s *stream) Close() error {
	s.stopped = true
	s.stop()
	return nil
}

func (s *stream) translate(resp *genai.GenerateContentResponse) {
	if !s.started {
		s.started = true
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventMessageStart})
	}

	if resp.UsageMetadata != nil {
		s.usage = &strand.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" {
		s.finishReason = string(candidate.FinishReason)
	}
	if candidate.Content == nil {
		return
	}

	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != "":
			if s.textIndex < 0 {
				s.textIndex = s.nextIndex
				s.nextIndex++
				s.queue = append(s.queue, strand.StreamEvent{
					Kind:  strand.EventBlockStart,
					Index: s.textIndex,
					Block: &strand.ContentBlock{Type: strand.BlockText},
				})
			}
			s.queue = append(s.queue, strand.StreamEvent{
				Kind:  strand.EventBlockDelta,
				Index: s.textIndex,
				Delta: &strand.Delta{Type: strand.DeltaText, Text: part.Text},
			})

		case part.FunctionCall != nil:
			s.emitCall(part.FunctionCall)
		}
	}
}

// emitCall opens, fills, and closes a tool_use block. A function call
// arrives whole in one chunk, so the block never stays open.
func (s *stream) emitCall(call *genai.FunctionCall) {
	s.closeText()
	s.toolSeen = true

	id := call.ID
	if id == "" {
		id = fmt.Sprintf("call_%d_%s", s.callCount, call.Name)
	}
	s.callCount++

	index := s.nextIndex
	s.nextIndex++
	s.queue = append(s.queue, strand.StreamEvent{
		Kind:  strand.EventBlockStart,
		Index: index,
		Block: &strand.ContentBlock{
			Type: strand.BlockToolUse,
			ID:   id,
			Name: call.Name,
		},
	})
	if len(call.Args) > 0 {
		args, err := json.Marshal(call.Args)
		if err == nil {
			s.queue = append(s.queue, strand.StreamEvent{
				Kind:  strand.EventBlockDelta,
				Index: index,
				Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: string(args)},
			})
		}
	}
	s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventBlockStop, Index: index})
}

// finish closes any open block and emits the terminal message events.
func (s *stream) finish() {
	if !s.started {
		s.started = true
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventMessageStart})
	}
	s.closeText()
	s.queue = append(s.queue, strand.StreamEvent{
		Kind:       strand.EventMessageDelta,
		StopReason: s.mapFinishReason(),
		Usage:      s.usage,
	})
	s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventMessageStop})
}

func (s *stream) closeText() {
	if s.textIndex >= 0 {
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventBlockStop, Index: s.textIndex})
		s.textIndex = -1
	}
}

// mapFinishReason translates Gemini finish reasons. Gemini reports STOP for
// function-calling turns too, so the presence of a call decides tool_use.
func (s *stream) mapFinishReason() string {
	switch s.finishReason {
	case "STOP", "":
		if s.toolSeen {
			return "tool_use"
		}
		return "end_turn"
	case "MAX_TOKENS":
		return "max_tokens"
	default:
		return s.finishReason
	}
}

func convertTurns(turns []strand.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		role := genai.RoleUser
		if turn.Role == strand.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, block := range turn.Blocks {
			switch block.Type {
			case strand.BlockText:
				if block.Text != "" {
					parts = append(parts, &genai.Part{Text: block.Text})
				}
			case strand.BlockToolUse:
				if block.ToolCall != nil {
					parts = append(parts, convertCall(*block.ToolCall))
				}
			case strand.BlockToolResult:
				if block.ToolResult != nil {
					parts = append(parts, convertResult(*block.ToolResult))
				}
			}
		}
		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents
}

func convertCall(call strand.ToolCall) *genai.Part {
	var args map[string]any
	json.Unmarshal([]byte(call.Arguments), &args)
	return &genai.Part{
		FunctionCall: &genai.FunctionCall{
			ID:   call.ID,
			Name: call.Name,
			Args: args,
		},
	}
}

func convertResult(result strand.ToolResult) *genai.Part {
	// Non-JSON tool output is wrapped so it still travels as a response
	// object.
	var response map[string]any
	if err := json.Unmarshal([]byte(result.Content), &response); err != nil {
		response = map[string]any{"result": result.Content}
	}
	if result.IsError {
		response["error"] = true
	}
	return &genai.Part{
		FunctionResponse: &genai.FunctionResponse{
			ID:       result.ToolCallID,
			Name:     result.ToolCallID,
			Response: response,
		},
	}
}

func convertTools(tools []strand.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	funcs := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		funcs[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: funcs}}
}

// convertSchema maps a JSON Schema object onto the SDK's schema type. Only
// the vocabulary tool declarations use survives the mapping.
func convertSchema(raw json.RawMessage) *genai.Schema {
	if len(raw) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return convertSchemaObject(schema)
}

func convertSchemaObject(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{}

	if typeVal, ok := schema["type"].(string); ok {
		switch typeVal {
		case "string":
			result.Type = genai.TypeString
		case "number":
			result.Type = genai.TypeNumber
		case "integer":
			result.Type = genai.TypeInteger
		case "boolean":
			result.Type = genai.TypeBoolean
		case "array":
			result.Type = genai.TypeArray
		case "object":
			result.Type = genai.TypeObject
		}
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	if enumVal, ok := schema["enum"].([]any); ok {
		for _, e := range enumVal {
			if s, ok := e.(string); ok {
				result.Enum = append(result.Enum, s)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				result.Properties[name] = convertSchemaObject(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		result.Items = convertSchemaObject(items)
	}
	return result
}
