package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/retry"
	"github.com/strandworks/strand/sse"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	defaultMaxTokens  = 4096
)

// HTTPClient is a StreamClient for the Anthropic-style messages API over
// server-sent events.
type HTTPClient struct {
	baseURL string
	apiKey  string
	version string
	http    *http.Client
	retry   retry.Config
	logger  *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithBaseURL overrides the API endpoint, for proxies and test servers.
func WithBaseURL(url string) HTTPOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIVersion overrides the anthropic-version header.
func WithAPIVersion(version string) HTTPOption {
	return func(c *HTTPClient) {
		c.version = version
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithRetry configures retry behavior for opening the stream. Retries
// cover connection establishment only, never mid-stream failures.
func WithRetry(cfg retry.Config) HTTPOption {
	return func(c *HTTPClient) {
		c.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a streaming client authenticated with apiKey.
func NewHTTPClient(apiKey string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		version: defaultAPIVersion,
		http:    &http.Client{Timeout: 10 * time.Minute},
		retry:   retry.DefaultConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream opens a streamed model call. The returned Stream reads from the
// live response body; canceling ctx abandons it mid-stream.
func (c *HTTPClient) Stream(ctx context.Context, req Request) (Stream, error) {
	payload, err := json.Marshal(buildWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	resp, err := retry.Do(ctx, c.retry, func() (*http.Response, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		return nil, err
	}

	return &httpStream{
		decoder: sse.NewDecoder(resp.Body, sse.WithLogger(c.logger)),
		body:    resp.Body,
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)
	httpReq.Header.Set("accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &strand.TransportError{Op: "connect", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpError{status: resp.StatusCode, body: string(body)}
	}

	return resp, nil
}

// httpError carries the status code so the retry layer can tell rate
// limits and server errors from permanent request failures.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("client: api error %d: %s", e.status, e.body)
}

func (e *httpError) StatusCode() int {
	return e.status
}

type httpStream struct {
	decoder *sse.Decoder
	body    io.ReadCloser
	closed  bool
}

func (s *httpStream) Next() (strand.StreamEvent, error) {
	if s.closed {
		return strand.StreamEvent{}, io.EOF
	}
	return s.decoder.Next()
}

func (s *httpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// wire request shapes

type wireRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireContentBlock struct {
	Type string `json:"type"`

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func buildWireRequest(req Request) wireRequest {
	wire := wireRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if wire.MaxTokens == 0 {
		wire.MaxTokens = defaultMaxTokens
	}
	if req.Temperature != 0 {
		t := req.Temperature
		wire.Temperature = &t
	}

	for _, turn := range req.Turns {
		wire.Messages = append(wire.Messages, wireMessageFrom(turn))
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return wire
}

func wireMessageFrom(turn strand.Turn) wireMessage {
	msg := wireMessage{Role: string(turn.Role)}

	for _, block := range turn.Blocks {
		switch block.Type {
		case strand.BlockText:
			msg.Content = append(msg.Content, wireContentBlock{
				Type: "text",
				Text: block.Text,
			})

		case strand.BlockThinking:
			msg.Content = append(msg.Content, wireContentBlock{
				Type:     "thinking",
				Thinking: block.Text,
			})

		case strand.BlockToolUse:
			if block.ToolCall == nil {
				continue
			}
			input := json.RawMessage(block.ToolCall.Arguments)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			msg.Content = append(msg.Content, wireContentBlock{
				Type:  "tool_use",
				ID:    block.ToolCall.ID,
				Name:  block.ToolCall.Name,
				Input: input,
			})

		case strand.BlockToolResult:
			if block.ToolResult == nil {
				continue
			}
			msg.Content = append(msg.Content, wireContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ToolResult.ToolCallID,
				Content:   block.ToolResult.Content,
				IsError:   block.ToolResult.IsError,
			})
		}
	}

	return msg
}
