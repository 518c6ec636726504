package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const defaultMaxTokens = 8192

// AnthropicClient calls the Anthropic API directly. Used when no hosted
// model service is configured.
type AnthropicClient struct {
	client *anthropic.Client
	logger *zap.Logger
}

// NewAnthropicClient creates a direct Anthropic backend
func NewAnthropicClient(apiKey string, logger *zap.Logger) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client, logger: logger}
}

// anthropicResponse adapts a completed message for text normalization
type anthropicResponse struct {
	msg *anthropic.Message
}

func (r anthropicResponse) ResponseText() string {
	var b strings.Builder
	for _, block := range r.msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

func (a *AnthropicClient) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	// CRIS ids carry a regional prefix the API does not expect
	model := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(
		req.ModelID, "us."), "eu."), "apac.")

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	return params
}

// Call performs a buffered completion
func (a *AnthropicClient) Call(ctx context.Context, req Request) (interface{}, error) {
	msg, err := a.client.Messages.New(ctx, a.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic call: %w", err)
	}
	a.logger.Debug("anthropic completion finished",
		zap.String("model", string(msg.Model)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))
	return anthropicResponse{msg: msg}, nil
}

// Stream performs a streaming completion, emitting text deltas and a
// final Done event with the accumulated text.
func (a *AnthropicClient) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.buildParams(req))

	events := make(chan StreamEvent, 64)
	go func() {
		defer close(events)

		var accumulated strings.Builder
		for stream.Next() {
			event := stream.Current()
			if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					accumulated.WriteString(delta.Text)
					select {
					case events <- StreamEvent{Text: delta.Text}:
					case <-ctx.Done():
						events <- StreamEvent{Err: ctx.Err()}
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("anthropic stream: %w", err)}
			return
		}
		events <- StreamEvent{Text: accumulated.String(), Done: true}
	}()
	return events, nil
}
