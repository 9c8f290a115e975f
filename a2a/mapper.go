package a2a

import (
	"github.com/google/uuid"

	"github.com/strandworks/strand/agent"
	"github.com/strandworks/strand/event"
)

// Mapper converts run events to A2A task updates.
//
// A2A is task-centric: there is no streaming text channel, only status
// transitions and artifacts. The mapper therefore tracks the latest
// assistant message text and attaches it to the terminal status update.
// Tool results surface immediately as artifacts.
//
// A Mapper serves one task and is not safe for concurrent use.
type Mapper struct {
	taskID    string
	contextID string
	state     TaskState

	content string
}

// NewMapper creates a Mapper for one task. Empty IDs are generated.
func NewMapper(taskID, contextID string) *Mapper {
	if taskID == "" {
		taskID = uuid.New().String()
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}
	return &Mapper{
		taskID:    taskID,
		contextID: contextID,
		state:     TaskStateSubmitted,
	}
}

// TaskID returns the task ID for this mapper.
func (m *Mapper) TaskID() string {
	return m.taskID
}

// ContextID returns the context ID for this mapper.
func (m *Mapper) ContextID() string {
	return m.contextID
}

// State returns the task state after the last mapped event.
func (m *Mapper) State() TaskState {
	return m.state
}

// Task builds a Task snapshot from the current mapper state.
func (m *Mapper) Task() *Task {
	task := NewTask(m.taskID, m.contextID)
	task.Status = NewTaskStatus(m.state, nil)
	return task
}

// StatusUpdate builds a status update event and records the transition.
func (m *Mapper) StatusUpdate(state TaskState, msg *Message, final bool) TaskStatusUpdateEvent {
	m.state = state
	return TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    m.taskID,
		ContextID: m.contextID,
		Status:    NewTaskStatus(state, msg),
		Final:     final,
	}
}

// ArtifactUpdate builds an artifact update event.
func (m *Mapper) ArtifactUpdate(artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{
		Kind:      "artifact-update",
		TaskID:    m.taskID,
		ContextID: m.contextID,
		Artifact:  artifact,
	}
}

// MapEvent converts one run event to an A2A update, or nil when the
// protocol has nothing to say about it.
func (m *Mapper) MapEvent(e event.Event) Event {
	switch e.Type {
	case event.RunStart:
		return m.StatusUpdate(TaskStateWorking, nil, false)

	case event.RunEnd:
		msg := m.finalMessage()
		if e.Signal == string(agent.SignalAwaitingInput) {
			// The run paused for user input; the task resumes once the
			// client answers, so this update is not final.
			return m.StatusUpdate(TaskStateInputRequired, msg, false)
		}
		return m.StatusUpdate(TaskStateCompleted, msg, true)

	case event.RunError:
		detail := "unknown error"
		if e.Error != nil {
			detail = e.Error.Error()
		}
		msg := NewMessage(MessageRoleAgent, NewTextPart(detail))
		return m.StatusUpdate(TaskStateFailed, &msg, true)

	case event.MessageStart:
		m.content = ""
		return nil

	case event.MessageDelta:
		m.content += e.Delta
		return nil

	case event.ToolCallResult:
		if e.ToolCall == nil || e.ToolResult == nil {
			return nil
		}
		artifact := NewArtifact(e.ToolCall.Name, "tool result", NewTextPart(e.ToolResult.Content))
		artifact.Metadata = map[string]any{
			"tool_call_id": e.ToolCall.ID,
			"is_error":     e.ToolResult.IsError,
		}
		return m.ArtifactUpdate(artifact)
	}

	return nil
}

// MapStream wraps a run event channel and yields A2A updates. The output
// channel closes when the input closes.
func (m *Mapper) MapStream(input <-chan event.Event) <-chan Event {
	output := make(chan Event, 100)
	go func() {
		defer close(output)
		for e := range input {
			if update := m.MapEvent(e); update != nil {
				output <- update
			}
		}
	}()
	return output
}

func (m *Mapper) finalMessage() *Message {
	if m.content == "" {
		return nil
	}
	msg := NewMessage(MessageRoleAgent, NewTextPart(m.content))
	return &msg
}
