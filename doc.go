// Package strand provides the core data model for driving multi-turn,
// tool-calling conversations against a streaming LLM backend.
//
// The root package defines the conversation model (turns composed of typed
// content blocks), the tool-calling contract (Tool, ToolCall, ToolResult),
// the wire-level streaming event model shared by the SSE decoder and the
// provider adapters, and the error taxonomy used across the module.
//
// Subpackages build the runtime on top of this model:
//
//   - sse decodes a raw byte stream into typed StreamEvents.
//   - assemble turns StreamEvents into tool calls and conversation turns,
//     marking each tool call ready the moment its block closes.
//   - tool executes assembled calls against registered capabilities.
//   - agent orchestrates bounded agent iterations with stagnation detection.
//   - budget bounds how much context is packed into each model call.
//   - client, provider/anthropic and provider/openai produce StreamEvents
//     from real backends.
//
// The defining property of the runtime is that a completed tool_use block
// is dispatched for execution while later blocks of the same response are
// still streaming.
package strand
