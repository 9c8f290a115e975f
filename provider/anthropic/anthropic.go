// Package anthropic adapts the official Anthropic SDK to the runtime's
// streaming client interface. The SDK handles transport and wire decoding;
// this package only translates between the two event vocabularies.
package anthropic

import (
	"context"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/client"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// Client implements client.StreamClient over the Anthropic SDK.
// It reads the API key from the ANTHROPIC_API_KEY environment variable
// unless WithAPIKey overrides it.
type Client struct {
	client *anthropic.Client
	model  string
}

// ClientOption configures the Anthropic client.
type ClientOption func(*Client)

// WithAPIKey sets the API key explicitly instead of using the environment
// variable.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		sdk := anthropic.NewClient(option.WithAPIKey(key))
		c.client = &sdk
	}
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Anthropic client.
func New(opts ...ClientOption) *Client {
	c := &Client{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		sdk := anthropic.NewClient()
		c.client = &sdk
	}
	return c
}

// Stream opens a streamed message call.
func (c *Client) Stream(ctx context.Context, req client.Request) (client.Stream, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  convertTurns(req.Turns),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return &stream{raw: c.client.Messages.NewStreaming(ctx, params)}, nil
}

var _ client.StreamClient = (*Client)(nil)

// stream translates SDK events one at a time. Event kinds the runtime has
// no use for (ping, signature deltas) are skipped, not surfaced.
type stream struct {
	raw *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *stream) Next() (strand.StreamEvent, error) {
	for s.raw.Next() {
		if ev, ok := mapEvent(s.raw.Current()); ok {
			return ev, nil
		}
	}
	if err := s.raw.Err(); err != nil {
		return strand.StreamEvent{}, &strand.TransportError{Op: "stream", Err: err}
	}
	return strand.StreamEvent{}, io.EOF
}

func (s *stream) Close() error {
	return s.raw.Close()
}

func mapEvent(ev anthropic.MessageStreamEventUnion) (strand.StreamEvent, bool) {
	switch variant := ev.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return strand.StreamEvent{
			Kind: strand.EventMessageStart,
			Usage: &strand.Usage{
				InputTokens:  int(variant.Message.Usage.InputTokens),
				OutputTokens: int(variant.Message.Usage.OutputTokens),
			},
		}, true

	case anthropic.ContentBlockStartEvent:
		return strand.StreamEvent{
			Kind:  strand.EventBlockStart,
			Index: int(variant.Index),
			Block: &strand.ContentBlock{
				Type: strand.BlockType(variant.ContentBlock.Type),
				ID:   variant.ContentBlock.ID,
				Name: variant.ContentBlock.Name,
			},
		}, true

	case anthropic.ContentBlockDeltaEvent:
		var delta *strand.Delta
		switch d := variant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			delta = &strand.Delta{Type: strand.DeltaText, Text: d.Text}
		case anthropic.ThinkingDelta:
			delta = &strand.Delta{Type: strand.DeltaThinking, Thinking: d.Thinking}
		case anthropic.InputJSONDelta:
			delta = &strand.Delta{Type: strand.DeltaInputJSON, PartialJSON: d.PartialJSON}
		default:
			return strand.StreamEvent{}, false
		}
		return strand.StreamEvent{
			Kind:  strand.EventBlockDelta,
			Index: int(variant.Index),
			Delta: delta,
		}, true

	case anthropic.ContentBlockStopEvent:
		return strand.StreamEvent{
			Kind:  strand.EventBlockStop,
			Index: int(variant.Index),
		}, true

	case anthropic.MessageDeltaEvent:
		out := strand.StreamEvent{
			Kind:       strand.EventMessageDelta,
			StopReason: string(variant.Delta.StopReason),
		}
		if variant.Usage.InputTokens > 0 || variant.Usage.OutputTokens > 0 {
			out.Usage = &strand.Usage{
				InputTokens:  int(variant.Usage.InputTokens),
				OutputTokens: int(variant.Usage.OutputTokens),
			}
		}
		return out, true

	case anthropic.MessageStopEvent:
		return strand.StreamEvent{Kind: strand.EventMessageStop}, true
	}

	return strand.StreamEvent{}, false
}
