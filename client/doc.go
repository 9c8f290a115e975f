// Package client defines the model streaming contract and an HTTP
// implementation of it.
//
// A StreamClient opens one streamed model call per request and hands back
// a Stream of decoded events. The HTTPClient speaks the Anthropic-style
// messages wire format over server-sent events; provider SDK adapters in
// provider/ satisfy the same interface without raw HTTP.
package client
