// Package llm abstracts the model backends used for code generation. The
// orchestrator talks to a Client; whether that is the hosted model service
// or the Anthropic API directly is a wiring decision in main.
package llm

import (
	"context"
)

// Request is one generation call
type Request struct {
	Prompt      string
	ModelID     string
	Temperature *float64
	TopP        *float64
	MaxTokens   int

	// Optional feature flags forwarded from the request's advanced config
	EnableReasoning     bool
	EnablePromptCaching bool
}

// StreamEvent is one chunk of a streaming generation. Exactly one terminal
// event is delivered: Done with the full accumulated text, or Err.
type StreamEvent struct {
	Text string
	Done bool
	Err  error
}

// Client is a model backend. Call returns the raw decoded response body;
// callers normalize it to text via the extraction layer, which keeps
// backend response shapes out of the orchestrator.
type Client interface {
	Call(ctx context.Context, req Request) (interface{}, error)
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}
