// Package a2a bridges agent runs to the A2A (Agent-to-Agent) protocol.
//
// A2A is an open protocol for interoperability between agent systems. It
// frames all work as tasks: a client sends a message, the serving agent
// reports task status transitions (submitted, working, input-required,
// completed, failed) and emits artifacts along the way. The wire format is
// JSON-RPC 2.0 over HTTP(S), with Server-Sent Events for streaming.
//
// This package provides the protocol types, conversion between A2A messages
// and conversation turns, a Mapper from run events to task updates, an
// Executor that serves a Loop as an A2A agent, and a Client plus tool
// registration for calling remote A2A agents from a run. Transport servers
// (the JSON-RPC endpoint itself) are left to the caller.
//
// Serving a loop:
//
//	exec := a2a.NewExecutor(loop, agent.WithSystem(systemPrompt))
//	for update := range exec.ExecuteStream(ctx, req) {
//	    writeSSE(update)
//	}
//
// Calling a remote agent as a tool:
//
//	registry.Add(a2a.AgentTool(a2a.NewClient(endpoint),
//	    a2a.WithToolName("research_agent"),
//	))
package a2a
