// Package openai adapts the OpenAI SDK to the runtime's streaming client
// interface. Chat completion chunks are flat deltas, so the adapter
// synthesizes the block structure the runtime expects: one block per text
// run, one per tool call, opened and closed as the chunks arrive.
package openai

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/client"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "gpt-4o"

// Client implements client.StreamClient over the OpenAI SDK.
// It reads the API key from the OPENAI_API_KEY environment variable unless
// WithAPIKey overrides it.
type Client struct {
	client *openai.Client
	model  string
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithAPIKey sets the API key explicitly instead of using the environment
// variable.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		sdk := openai.NewClient(option.WithAPIKey(key))
		c.client = &sdk
	}
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new OpenAI client.
func New(opts ...ClientOption) *Client {
	c := &Client{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		sdk := openai.NewClient()
		c.client = &sdk
	}
	return c
}

// Stream opens a streamed chat completion.
func (c *Client) Stream(ctx context.Context, req client.Request) (client.Stream, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertTurns(req.System, req.Turns),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return &stream{
		raw:       c.client.Chat.Completions.NewStreaming(ctx, params),
		textIndex: -1,
		toolIndex: make(map[int64]int),
	}, nil
}

var _ client.StreamClient = (*Client)(nil)

// stream rebuilds block-structured events from chunk deltas. One chunk can
// yield several events, so translated events queue until Next drains them.
type stream struct {
	raw   *ssestream.Stream[openai.ChatCompletionChunk]
	queue []strand.StreamEvent

	started   bool
	nextIndex int
	// textIndex is the open text block, -1 when none.
	textIndex int
	// toolIndex maps the chunk's tool-call index to the synthesized block
	// index for the call.
	toolIndex map[int64]int
	stopped   bool
}

func (s *stream) Next() (strand.StreamEvent, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}

		if !s.raw.Next() {
			break
		}
		s.translate(s.raw.Current())
	}

	if err := s.raw.Err(); err != nil {
		return strand.StreamEvent{}, &strand.TransportError{Op: "stream", Err: err}
	}
	if !s.stopped {
		s.stopped = true
		s.closeBlocks()
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventMessageStop})
		ev := s.queue[0]
		s.queue = s.queue[1:]
		return ev, nil
	}
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		return ev, nil
	}
	return strand.StreamEvent{}, io.EOF
}

func (s *stream) Close() error {
	return s.raw.Close()
}

func (s *stream) translate(chunk openai.ChatCompletionChunk) {
	if !s.started {
		s.started = true
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventMessageStart})
	}

	// The usage chunk arrives last, with no choices.
	if len(chunk.Choices) == 0 {
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			s.queue = append(s.queue, strand.StreamEvent{
				Kind: strand.EventMessageDelta,
				Usage: &strand.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				},
			})
		}
		return
	}

	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
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
			Delta: &strand.Delta{Type: strand.DeltaText, Text: choice.Delta.Content},
		})
	}

	for _, tc := range choice.Delta.ToolCalls {
		index, open := s.toolIndex[tc.Index]
		if !open {
			index = s.nextIndex
			s.nextIndex++
			s.toolIndex[tc.Index] = index
			s.queue = append(s.queue, strand.StreamEvent{
				Kind:  strand.EventBlockStart,
				Index: index,
				Block: &strand.ContentBlock{
					Type: strand.BlockToolUse,
					ID:   tc.ID,
					Name: tc.Function.Name,
				},
			})
		}
		if tc.Function.Arguments != "" {
			s.queue = append(s.queue, strand.StreamEvent{
				Kind:  strand.EventBlockDelta,
				Index: index,
				Delta: &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: tc.Function.Arguments},
			})
		}
	}

	if choice.FinishReason != "" {
		s.closeBlocks()
		s.queue = append(s.queue, strand.StreamEvent{
			Kind:       strand.EventMessageDelta,
			StopReason: mapFinishReason(choice.FinishReason),
		})
	}
}

// closeBlocks emits content_block_stop for every block still open, tool
// blocks in their start order.
func (s *stream) closeBlocks() {
	if s.textIndex >= 0 {
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventBlockStop, Index: s.textIndex})
		s.textIndex = -1
	}
	indices := make([]int, 0, len(s.toolIndex))
	for _, index := range s.toolIndex {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	for _, index := range indices {
		s.queue = append(s.queue, strand.StreamEvent{Kind: strand.EventBlockStop, Index: index})
	}
	s.toolIndex = make(map[int64]int)
}

func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

func convertTurns(system string, turns []strand.Turn) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, turn := range turns {
		switch turn.Role {
		case strand.RoleAssistant:
			result = append(result, convertAssistantTurn(turn))
		default:
			// Tool results become tool messages; any text travels as a
			// separate user message.
			for _, r := range turn.ToolResults() {
				result = append(result, openai.ToolMessage(r.Content, r.ToolCallID))
			}
			if text := turn.Text(); text != "" {
				result = append(result, openai.UserMessage(text))
			}
		}
	}
	return result
}

func convertAssistantTurn(turn strand.Turn) openai.ChatCompletionMessageParamUnion {
	calls := turn.ToolCalls()
	if len(calls) == 0 {
		return openai.AssistantMessage(turn.Text())
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, tc := range calls {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		}
	}
	assistant := openai.ChatCompletionAssistantMessageParam{
		ToolCalls: toolCalls,
	}
	if text := turn.Text(); text != "" {
		assistant.Content.OfString = openai.String(text)
	}
	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &assistant,
	}
}

func convertTools(tools []strand.Tool) []openai.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		var params shared.FunctionParameters
		if len(t.Parameters) > 0 {
			json.Unmarshal(t.Parameters, &params)
		}
		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		}
	}
	return result
}
