package a2a

import (
	"context"
	"fmt"

	"github.com/strandworks/strand/tool"
)

type agentToolArgs struct {
	Query string `json:"query" desc:"The task to delegate to the remote agent" required:"true"`
}

// AgentToolOption configures an AgentTool registration.
type AgentToolOption func(*agentToolConfig)

type agentToolConfig struct {
	name        string
	description string
}

// WithToolName overrides the default tool name "remote_agent".
func WithToolName(name string) AgentToolOption {
	return func(c *agentToolConfig) {
		c.name = name
	}
}

// WithToolDescription overrides the tool description.
func WithToolDescription(desc string) AgentToolOption {
	return func(c *agentToolConfig) {
		c.description = desc
	}
}

// AgentTool wraps a remote A2A agent as a local tool registration, so one
// loop can delegate subtasks to another agent. The remote agent's final
// message text becomes the tool result; a failed task becomes an error
// result the model can react to.
func AgentTool(client *Client, opts ...AgentToolOption) tool.Registration {
	cfg := &agentToolConfig{
		name:        "remote_agent",
		description: "Delegate a task to a remote AI agent and return its answer",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return tool.Func(cfg.name, cfg.description,
		func(ctx context.Context, args agentToolArgs) (string, error) {
			task, err := client.SendText(ctx, args.Query)
			if err != nil {
				return "", fmt.Errorf("remote agent call: %w", err)
			}

			switch task.Status.State {
			case TaskStateFailed, TaskStateRejected, TaskStateCanceled:
				detail := string(task.Status.State)
				if task.Status.Message != nil {
					detail = task.Status.Message.TextContent()
				}
				return "", fmt.Errorf("remote agent %s: %s", task.Status.State, detail)
			}

			if task.Status.Message != nil {
				return task.Status.Message.TextContent(), nil
			}
			return string(task.Status.State), nil
		},
	)
}
