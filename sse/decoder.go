// Package sse decodes server-sent-event byte streams into typed
// strand.StreamEvents.
//
// The decoder is pull-based: callers invoke Next until it returns io.EOF.
// Input chunking is arbitrary; frames split across reads are buffered until
// the blank-line terminator arrives. A malformed payload drops only the
// offending frame, never the stream.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/strandworks/strand"
)

// doneSentinel terminates the stream without producing an event.
const doneSentinel = "[DONE]"

// errSkipFrame marks a frame that decoded cleanly but carries no event we
// surface (pings, unknown event types).
var errSkipFrame = errors.New("sse: skip frame")

// Decoder reads SSE frames from an underlying reader and emits typed
// stream events. It is not safe for concurrent use; a response stream has
// exactly one sequential reader.
type Decoder struct {
	r      *bufio.Reader
	logger *slog.Logger
	done   bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for dropped-frame diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = l
	}
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:      bufio.NewReader(r),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next decoded event. It returns io.EOF when the stream
// ends, either by the [DONE] sentinel or by the underlying reader running
// out. Transport-level read failures are returned as *strand.TransportError.
func (d *Decoder) Next() (strand.StreamEvent, error) {
	for {
		if d.done {
			return strand.StreamEvent{}, io.EOF
		}

		name, data, err := d.readFrame()
		if err != nil {
			return strand.StreamEvent{}, err
		}

		if data == doneSentinel {
			d.done = true
			return strand.StreamEvent{}, io.EOF
		}

		ev, err := parseFrame(name, data)
		if errors.Is(err, errSkipFrame) {
			continue
		}
		if err != nil {
			// Drop only this frame; the stream stays alive.
			d.logger.Warn("dropping malformed stream frame",
				"event", name,
				"error", err,
				"frame", excerpt(data))
			continue
		}
		return ev, nil
	}
}

// readFrame accumulates lines until a blank-line terminator completes a
// frame with at least one field. It returns the event name (possibly empty)
// and the joined data payload.
func (d *Decoder) readFrame() (name, data string, err error) {
	var dataLines []string
	sawField := false

	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if sawField {
					// Partial frame at end of input: never dispatch it.
					d.logger.Debug("discarding incomplete frame at end of stream", "event", name)
				}
				d.done = true
				return "", "", io.EOF
			}
			return "", "", &strand.TransportError{Op: "read", Err: err}
		}

		line = trimLineEnding(line)

		if line == "" {
			if !sawField {
				continue // stray blank line between frames
			}
			return name, joinData(dataLines), nil
		}

		// Comment lines start with a colon.
		if line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
			sawField = true
		case "data":
			dataLines = append(dataLines, value)
			sawField = true
		default:
			// id, retry and unknown fields are irrelevant here.
		}
	}
}

func trimLineEnding(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// A single leading space after the colon is part of the framing.
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

func joinData(lines []string) string {
	if len(lines) == 1 {
		return lines[0]
	}
	return strings.Join(lines, "\n")
}

// Wire payload shapes. The data JSON carries its own "type" discriminator;
// it is authoritative when it disagrees with the event: line.
type wireEvent struct {
	Type         string           `json:"type"`
	Index        int              `json:"index"`
	ContentBlock *wireBlock       `json:"content_block"`
	Delta        json.RawMessage  `json:"delta"`
	Usage        *wireUsage       `json:"usage"`
	Message      *wireMessageInfo `json:"message"`
}

type wireBlock struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireBlockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Thinking    string `json:"thinking"`
	PartialJSON string `json:"partial_json"`
}

type wireMessageDelta struct {
	StopReason string `json:"stop_reason"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireMessageInfo struct {
	Usage *wireUsage `json:"usage"`
}

func parseFrame(name, data string) (strand.StreamEvent, error) {
	var we wireEvent
	if err := json.Unmarshal([]byte(data), &we); err != nil {
		return strand.StreamEvent{}, &strand.ProtocolError{Frame: excerpt(data), Reason: "payload is not valid JSON"}
	}

	kind := we.Type
	if kind == "" {
		kind = name
	}

	switch strand.EventKind(kind) {
	case strand.EventMessageStart:
		ev := strand.StreamEvent{Kind: strand.EventMessageStart}
		if we.Message != nil && we.Message.Usage != nil {
			ev.Usage = &strand.Usage{
				InputTokens:  we.Message.Usage.InputTokens,
				OutputTokens: we.Message.Usage.OutputTokens,
			}
		}
		return ev, nil

	case strand.EventBlockStart:
		if we.ContentBlock == nil {
			return strand.StreamEvent{}, &strand.ProtocolError{Frame: excerpt(data), Reason: "content_block_start without content_block"}
		}
		return strand.StreamEvent{
			Kind:  strand.EventBlockStart,
			Index: we.Index,
			Block: &strand.ContentBlock{
				Type: strand.BlockType(we.ContentBlock.Type),
				ID:   we.ContentBlock.ID,
				Name: we.ContentBlock.Name,
			},
		}, nil

	case strand.EventBlockDelta:
		var bd wireBlockDelta
		if err := json.Unmarshal(we.Delta, &bd); err != nil {
			return strand.StreamEvent{}, &strand.ProtocolError{Frame: excerpt(data), Reason: "content_block_delta with undecodable delta"}
		}
		delta := strand.Delta{Type: strand.DeltaType(bd.Type)}
		switch delta.Type {
		case strand.DeltaText:
			delta.Text = bd.Text
		case strand.DeltaThinking:
			delta.Thinking = bd.Thinking
		case strand.DeltaInputJSON:
			delta.PartialJSON = bd.PartialJSON
		default:
			return strand.StreamEvent{}, &strand.ProtocolError{Frame: excerpt(data), Reason: fmt.Sprintf("unknown delta type %q", bd.Type)}
		}
		return strand.StreamEvent{Kind: strand.EventBlockDelta, Index: we.Index, Delta: &delta}, nil

	case strand.EventBlockStop:
		return strand.StreamEvent{Kind: strand.EventBlockStop, Index: we.Index}, nil

	case strand.EventMessageDelta:
		ev := strand.StreamEvent{Kind: strand.EventMessageDelta}
		if len(we.Delta) > 0 {
			var md wireMessageDelta
			if err := json.Unmarshal(we.Delta, &md); err == nil {
				ev.StopReason = md.StopReason
			}
		}
		if we.Usage != nil {
			ev.Usage = &strand.Usage{
				InputTokens:  we.Usage.InputTokens,
				OutputTokens: we.Usage.OutputTokens,
			}
		}
		return ev, nil

	case strand.EventMessageStop:
		return strand.StreamEvent{Kind: strand.EventMessageStop}, nil

	default:
		// Pings and future event kinds pass through silently.
		return strand.StreamEvent{}, errSkipFrame
	}
}

func excerpt(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
