// Package tool provides tool registration, dispatch, and result
// verification for the agent loop.
//
// A Registry maps tool names to handlers and serves as the Executor for a
// Dispatcher. The Dispatcher runs one Batch per model response: calls are
// launched the moment their arguments finish streaming, results come back
// in launch order, and calls that touch the same target are serialized even
// when the batch runs concurrently.
package tool
