package agui

import (
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/strandworks/strand/event"
)

// Mapper converts run events to AG-UI events, one for one. It tracks the
// current message ID so deltas without one still correlate.
type Mapper struct {
	threadID  string
	runID     string
	messageID string
}

// NewMapper creates a Mapper for a single run. Empty IDs are generated.
func NewMapper(threadID, runID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	if runID == "" {
		runID = events.GenerateRunID()
	}
	return &Mapper{
		threadID: threadID,
		runID:    runID,
	}
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the run ID for this mapper.
func (m *Mapper) RunID() string {
	return m.runID
}

// MapEvent converts one run event to its AG-UI equivalent, or nil when the
// protocol has none.
func (m *Mapper) MapEvent(e event.Event) events.Event {
	switch e.Type {
	case event.RunStart:
		return events.NewRunStartedEvent(m.threadID, m.runID)
	case event.RunEnd:
		return events.NewRunFinishedEvent(m.threadID, m.runID)
	case event.RunError:
		msg := e.Message
		if e.Error != nil {
			msg = e.Error.Error()
		}
		if msg == "" {
			msg = "unknown error"
		}
		return events.NewRunErrorEvent(msg)

	case event.IterationStart:
		return events.NewStepStartedEvent(stepName(e.Iteration))
	case event.IterationEnd:
		return events.NewStepFinishedEvent(stepName(e.Iteration))

	case event.MessageStart:
		m.messageID = e.MessageID
		if m.messageID == "" {
			m.messageID = events.GenerateMessageID()
		}
		return events.NewTextMessageStartEvent(m.messageID, events.WithRole(RoleAssistant))
	case event.MessageDelta:
		if e.Delta == "" {
			return nil
		}
		return events.NewTextMessageContentEvent(m.currentMessageID(e), e.Delta)
	case event.MessageEnd:
		return events.NewTextMessageEndEvent(m.currentMessageID(e))

	case event.ToolCallStart:
		if e.ToolCall == nil {
			return nil
		}
		return events.NewToolCallStartEvent(e.ToolCall.ID, e.ToolCall.Name)
	case event.ToolCallReady:
		// Arguments arrive complete: one args event carries them all.
		if e.ToolCall == nil {
			return nil
		}
		return events.NewToolCallArgsEvent(e.ToolCall.ID, e.ToolCall.Arguments)
	case event.ToolCallExecuting:
		if e.ToolCall == nil {
			return nil
		}
		return events.NewToolCallEndEvent(e.ToolCall.ID)
	case event.ToolCallResult:
		if e.ToolCall == nil || e.ToolResult == nil {
			return nil
		}
		return events.NewToolCallResultEvent(events.GenerateMessageID(), e.ToolCall.ID, e.ToolResult.Content)
	}

	return nil
}

func (m *Mapper) currentMessageID(e event.Event) string {
	if e.MessageID != "" {
		return e.MessageID
	}
	if m.messageID == "" {
		m.messageID = events.GenerateMessageID()
	}
	return m.messageID
}

func stepName(iteration int) string {
	return fmt.Sprintf("iteration-%d", iteration)
}
