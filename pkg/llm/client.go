// Package llm provides a dual-endpoint client for OpenAI-compatible chat
// completion servers with health-based failover and retry.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for the client.
var (
	// ErrUnavailable is returned when all endpoints are unhealthy and
	// retries are exhausted.
	ErrUnavailable = errors.New("llm: all endpoints unavailable")
	// ErrInvalidResponse marks a response that failed JSON parsing or
	// schema validation. Raised by callers that request structured output.
	ErrInvalidResponse = errors.New("llm: invalid response")
	// ErrNoMessages is returned before any network call when the request
	// carries no messages.
	ErrNoMessages = errors.New("llm: request has no messages")
)

// Message is a single conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseSchema requests structured output (response_format=json_schema).
type ResponseSchema struct {
	Name   string
	Schema json.RawMessage
}

// Request is a chat completion request. Zero-valued tuning fields fall
// back to the configured defaults.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Schema      *ResponseSchema
}

// StreamChunk is one unit of a streaming response. Err is non-nil only on
// the terminal chunk of a failed stream.
type StreamChunk struct {
	Content string
	Err     error
}

// Chat is the interface workflow components depend on. Implemented by
// Client and by scripted test doubles.
type Chat interface {
	// ChatCompletion returns the full response text.
	ChatCompletion(ctx context.Context, req Request) (string, error)
	// ChatCompletionStream yields chunks as they arrive. The channel is
	// closed when the stream ends; a failed stream delivers a final chunk
	// with Err set.
	ChatCompletionStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
