package tool

import "fmt"

// ErrToolNotFound is returned when a tool call references an unregistered tool.
type ErrToolNotFound struct {
	Name string
}

func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("tool: not found: %s", e.Name)
}

// ErrToolAlreadyRegistered is returned when registering a duplicate tool name.
type ErrToolAlreadyRegistered struct {
	Name string
}

func (e *ErrToolAlreadyRegistered) Error() string {
	return fmt.Sprintf("tool: already registered: %s", e.Name)
}

// ErrClientTool is returned when attempting to execute a tool that is
// declared to the model but handled outside the runtime.
type ErrClientTool struct {
	Name string
}

func (e *ErrClientTool) Error() string {
	return fmt.Sprintf("tool: %s is a client-side tool and cannot be executed locally", e.Name)
}
