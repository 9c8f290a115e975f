package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/strandworks/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out n bytes at a time to exercise frames split across
// reads.
type chunkReader struct {
	data []byte
	n    int
	off  int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.off >= len(c.data) {
		return 0, io.EOF
	}
	end := c.off + c.n
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.off:end])
	c.off += n
	return n, nil
}

const toolStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":12}}}\n" +
	"\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hel\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n" +
	"\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n" +
	"\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":1,\"content_block\":{\"type\":\"tool_use\",\"id\":\"t1\",\"name\":\"write_file\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"path\\\":\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"a.txt\\\"}\"}}\n" +
	"\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":1}\n" +
	"\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"tool_use\"},\"usage\":{\"output_tokens\":30}}\n" +
	"\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n" +
	"\n"

func drain(t *testing.T, d *Decoder) []strand.StreamEvent {
	t.Helper()
	var events []strand.StreamEvent
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestDecoderFullToolStream(t *testing.T) {
	d := NewDecoder(strings.NewReader(toolStream))
	events := drain(t, d)
	require.Len(t, events, 11)

	assert.Equal(t, strand.EventMessageStart, events[0].Kind)
	require.NotNil(t, events[0].Usage)
	assert.Equal(t, 12, events[0].Usage.InputTokens)

	assert.Equal(t, strand.EventBlockStart, events[1].Kind)
	assert.Equal(t, strand.BlockText, events[1].Block.Type)

	assert.Equal(t, strand.EventBlockStart, events[5].Kind)
	assert.Equal(t, 1, events[5].Index)
	assert.Equal(t, strand.BlockToolUse, events[5].Block.Type)
	assert.Equal(t, "t1", events[5].Block.ID)
	assert.Equal(t, "write_file", events[5].Block.Name)

	assert.Equal(t, strand.EventMessageDelta, events[9].Kind)
	assert.Equal(t, "tool_use", events[9].StopReason)
	require.NotNil(t, events[9].Usage)
	assert.Equal(t, 30, events[9].Usage.OutputTokens)

	assert.Equal(t, strand.EventMessageStop, events[10].Kind)
}

// Concatenating all text deltas for one block index reproduces the
// provider's intended text exactly, regardless of how the transport chunks
// the bytes.
func TestDecoderTextDeltaFidelityUnderChunking(t *testing.T) {
	for _, chunk := range []int{1, 3, 7, 64, len(toolStream)} {
		d := NewDecoder(&chunkReader{data: []byte(toolStream), n: chunk})
		events := drain(t, d)

		var text string
		var toolArgs string
		for _, ev := range events {
			if ev.Kind != strand.EventBlockDelta {
				continue
			}
			switch ev.Index {
			case 0:
				text += ev.Delta.Text
			case 1:
				toolArgs += ev.Delta.PartialJSON
			}
		}
		assert.Equal(t, "hello", text, "chunk size %d", chunk)
		assert.Equal(t, `{"path":"a.txt"}`, toolArgs, "chunk size %d", chunk)
	}
}

func TestDecoderDoneSentinel(t *testing.T) {
	raw := "data: {\"type\":\"message_start\"}\n\ndata: [DONE]\n\ndata: {\"type\":\"message_stop\"}\n\n"
	d := NewDecoder(strings.NewReader(raw))

	ev, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, strand.EventMessageStart, ev.Kind)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)

	// The decoder stays terminated after the sentinel.
	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderDropsMalformedFrame(t *testing.T) {
	raw := "event: content_block_delta\n" +
		"data: {not json\n" +
		"\n" +
		"event: content_block_start\n" +
		"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n" +
		"\n"
	d := NewDecoder(strings.NewReader(raw))
	events := drain(t, d)

	require.Len(t, events, 1)
	assert.Equal(t, strand.EventBlockStart, events[0].Kind)
}

func TestDecoderSkipsPingsAndComments(t *testing.T) {
	raw := ": keepalive\n" +
		"event: ping\n" +
		"data: {\"type\":\"ping\"}\n" +
		"\n" +
		"data: {\"type\":\"message_stop\"}\n" +
		"\n"
	d := NewDecoder(strings.NewReader(raw))
	events := drain(t, d)

	require.Len(t, events, 1)
	assert.Equal(t, strand.EventMessageStop, events[0].Kind)
}

func TestDecoderCRLFAndMultilineData(t *testing.T) {
	raw := "event: content_block_stop\r\n" +
		"data: {\"type\":\"content_block_stop\",\r\n" +
		"data:  \"index\": 2}\r\n" +
		"\r\n"
	d := NewDecoder(strings.NewReader(raw))
	events := drain(t, d)

	require.Len(t, events, 1)
	assert.Equal(t, strand.EventBlockStop, events[0].Kind)
	assert.Equal(t, 2, events[0].Index)
}

func TestDecoderEventNameFallback(t *testing.T) {
	// Payload without a type field falls back to the event: line.
	raw := "event: message_stop\ndata: {}\n\n"
	d := NewDecoder(strings.NewReader(raw))
	events := drain(t, d)

	require.Len(t, events, 1)
	assert.Equal(t, strand.EventMessageStop, events[0].Kind)
}

func TestDecoderDiscardsPartialTrailingFrame(t *testing.T) {
	raw := "data: {\"type\":\"message_start\"}\n\nevent: content_block_delta\ndata: {\"type\":"
	d := NewDecoder(strings.NewReader(raw))
	events := drain(t, d)

	require.Len(t, events, 1)
	assert.Equal(t, strand.EventMessageStart, events[0].Kind)
}
