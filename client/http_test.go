package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\"}\n" +
	"\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n" +
	"\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n" +
	"\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n" +
	"\n"

func drainStream(t *testing.T, s Stream) []strand.StreamEvent {
	t.Helper()
	var events []strand.StreamEvent
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestHTTPClientStream(t *testing.T) {
	var gotBody wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, minimalStream)
	}))
	defer srv.Close()

	c := NewHTTPClient("test-key", WithBaseURL(srv.URL), WithRetry(retry.Disabled()))

	toolResult := strand.NewToolResultTurn(strand.ToolResult{ToolCallID: "t1", Content: "ok"})
	s, err := c.Stream(context.Background(), Request{
		Model:  "test-model",
		System: "be brief",
		Turns: []strand.Turn{
			strand.NewUserTurn("hello"),
			strand.NewAssistantTurn(strand.NewToolUseBlock(strand.ToolCall{ID: "t1", Name: "search", Arguments: `{"query":"x"}`})),
			toolResult,
		},
		Tools: []strand.Tool{
			{Name: "search", Description: "Search", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		MaxTokens: 128,
	})
	require.NoError(t, err)
	defer s.Close()

	events := drainStream(t, s)
	require.Len(t, events, 5)
	assert.Equal(t, strand.EventMessageStart, events[0].Kind)
	assert.Equal(t, "hi", events[2].Delta.Text)

	// Wire request fidelity.
	assert.Equal(t, "test-model", gotBody.Model)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, 128, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 3)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "tool_use", gotBody.Messages[1].Content[0].Type)
	assert.Equal(t, "t1", gotBody.Messages[1].Content[0].ID)
	assert.Equal(t, "tool_result", gotBody.Messages[2].Content[0].Type)
	assert.Equal(t, "t1", gotBody.Messages[2].Content[0].ToolUseID)
	require.Len(t, gotBody.Tools, 1)
	assert.Equal(t, "search", gotBody.Tools[0].Name)
}

func TestHTTPClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, minimalStream)
	}))
	defer srv.Close()

	c := NewHTTPClient("test-key", WithBaseURL(srv.URL), WithRetry(retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}))

	s, err := c.Stream(context.Background(), Request{Model: "m", Turns: []strand.Turn{strand.NewUserTurn("hi")}})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, drainStream(t, s), 5)
}

func TestHTTPClientPermanentStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Stream(context.Background(), Request{Model: "m", Turns: []strand.Turn{strand.NewUserTurn("hi")}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var httpErr *httpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode())
}

func TestHTTPClientCancellationMidStream(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		w.(http.Flusher).Flush()
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewHTTPClient("test-key", WithBaseURL(srv.URL), WithRetry(retry.Disabled()))

	s, err := c.Stream(ctx, Request{Model: "m", Turns: []strand.Turn{strand.NewUserTurn("hi")}})
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, strand.EventMessageStart, ev.Kind)

	cancel()

	_, err = s.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err, "cancellation is a transport failure, not a clean end")
}

func TestHTTPStreamClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, minimalStream)
	}))
	defer srv.Close()

	c := NewHTTPClient("test-key", WithBaseURL(srv.URL), WithRetry(retry.Disabled()))
	s, err := c.Stream(context.Background(), Request{Model: "m", Turns: []strand.Turn{strand.NewUserTurn("hi")}})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}
