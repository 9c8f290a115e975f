package a2a

import (
	"context"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/agent"
	"github.com/strandworks/strand/event"
)

// SendMessageRequest is an A2A message/send request.
type SendMessageRequest struct {
	Message  Message        `json:"message"`
	History  []Message      `json:"history,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Runner is the loop surface the executor needs. *agent.Loop satisfies it.
type Runner interface {
	RunTurns(ctx context.Context, turns []strand.Turn, opts ...agent.Option) (*agent.Result, error)
}

// Executor serves an agent loop as an A2A agent. Each request becomes one
// run; the run's termination signal decides the task's final state.
type Executor struct {
	runner  Runner
	options []agent.Option
}

// NewExecutor wraps a runner with the run options every task uses.
func NewExecutor(r Runner, opts ...agent.Option) *Executor {
	return &Executor{
		runner:  r,
		options: opts,
	}
}

// Execute runs the task to completion and returns the final Task, including
// the full conversation history. Run errors become failed tasks rather than
// transport errors; only context cancellation propagates.
func (e *Executor) Execute(ctx context.Context, req SendMessageRequest) (*Task, error) {
	mapper := NewMapper(taskID(req), contextID(req))
	turns := requestTurns(req)

	result, err := e.runner.RunTurns(ctx, turns, e.options...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		task := mapper.Task()
		msg := NewMessage(MessageRoleAgent, NewTextPart(err.Error()))
		task.Status = NewTaskStatus(TaskStateFailed, &msg)
		return task, nil
	}

	task := mapper.Task()
	task.Status = NewTaskStatus(finalState(result), finalMessage(result))
	task.History = FromTurns(result.State.History)
	return task, nil
}

// ExecuteStream runs the task and streams status and artifact updates. The
// channel closes after the terminal update.
func (e *Executor) ExecuteStream(ctx context.Context, req SendMessageRequest) <-chan Event {
	mapper := NewMapper(taskID(req), contextID(req))
	turns := requestTurns(req)

	events := event.NewChannel()
	opts := append(append([]agent.Option{}, e.options...), agent.WithEvents(events))

	go func() {
		defer close(events)
		// The loop emits RunEnd or RunError before returning, so the
		// mapper always sees a terminal event.
		e.runner.RunTurns(ctx, turns, opts...)
	}()

	return mapper.MapStream(events)
}

// requestTurns assembles the conversation: prior history first, then the
// new message.
func requestTurns(req SendMessageRequest) []strand.Turn {
	turns := ToTurns(req.History)
	return append(turns, ToTurn(req.Message))
}

// finalState maps a termination signal to a task state.
func finalState(result *agent.Result) TaskState {
	switch result.Signal.Kind {
	case agent.SignalAwaitingInput:
		return TaskStateInputRequired
	case agent.SignalErrorBudget, agent.SignalStagnation, agent.SignalArtifactCap:
		return TaskStateFailed
	default:
		return TaskStateCompleted
	}
}

// finalMessage carries the final assistant text, or for paused runs the
// question the agent asked.
func finalMessage(result *agent.Result) *Message {
	if result.Signal.Kind == agent.SignalAwaitingInput && len(result.PendingCalls) > 0 {
		var parts []Part
		for _, call := range result.PendingCalls {
			parts = append(parts, NewDataPart(map[string]any{
				"type": "tool_call",
				"tool_call": map[string]any{
					"id":        call.ID,
					"name":      call.Name,
					"arguments": call.Arguments,
				},
			}))
		}
		// Results that already settled in the paused iteration ride along
		// so the client can fold them into its resumption turn.
		for _, res := range result.PendingResults {
			parts = append(parts, NewDataPart(map[string]any{
				"type": "tool_result",
				"tool_result": map[string]any{
					"tool_call_id": res.ToolCallID,
					"content":      res.Content,
					"is_error":     res.IsError,
				},
			}))
		}
		if result.FinalText != "" {
			parts = append([]Part{NewTextPart(result.FinalText)}, parts...)
		}
		msg := NewMessage(MessageRoleAgent, parts...)
		return &msg
	}

	if result.FinalText == "" {
		return nil
	}
	msg := NewMessage(MessageRoleAgent, NewTextPart(result.FinalText))
	return &msg
}

func taskID(req SendMessageRequest) string {
	if req.Message.TaskID != nil {
		return *req.Message.TaskID
	}
	return ""
}

func contextID(req SendMessageRequest) string {
	if req.Message.ContextID != nil {
		return *req.Message.ContextID
	}
	return ""
}
