package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ServiceClient calls the hosted model service over HTTP. Non-streaming
// calls hit /invoke; streaming calls hit /invoke/stream and read
// server-sent events.
type ServiceClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewServiceClient creates a model service client. Generation calls run
// for minutes, so the read timeout is generous by design.
func NewServiceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ServiceClient {
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type invokePayload struct {
	Prompt              string   `json:"prompt"`
	ModelID             string   `json:"model_id"`
	Temperature         *float64 `json:"temperature,omitempty"`
	TopP                *float64 `json:"top_p,omitempty"`
	MaxTokens           int      `json:"max_tokens,omitempty"`
	EnableReasoning     bool     `json:"enable_reasoning,omitempty"`
	EnablePromptCaching bool     `json:"enable_prompt_caching,omitempty"`
	Stream              bool     `json:"stream,omitempty"`
}

// Call performs a buffered generation and returns the decoded response
// body as-is for downstream normalization.
func (s *ServiceClient) Call(ctx context.Context, req Request) (interface{}, error) {
	body, err := json.Marshal(invokePayload{
		Prompt:              req.Prompt,
		ModelID:             req.ModelID,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxTokens:           req.MaxTokens,
		EnableReasoning:     req.EnableReasoning,
		EnablePromptCaching: req.EnablePromptCaching,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return decoded, nil
}

// Stream performs a streaming generation, emitting text chunks as the
// service produces them and a final Done event with the accumulated text.
func (s *ServiceClient) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	body, err := json.Marshal(invokePayload{
		Prompt:              req.Prompt,
		ModelID:             req.ModelID,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxTokens:           req.MaxTokens,
		EnableReasoning:     req.EnableReasoning,
		EnablePromptCaching: req.EnablePromptCaching,
		Stream:              true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/invoke/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model service stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, snippet)
	}

	events := make(chan StreamEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var accumulated strings.Builder
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			chunk := decodeDataLine(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			if chunk == "" {
				continue
			}
			accumulated.WriteString(chunk)
			select {
			case events <- StreamEvent{Text: chunk}:
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Error("model service stream read failed", zap.Error(err))
			events <- StreamEvent{Err: err}
			return
		}
		events <- StreamEvent{Text: accumulated.String(), Done: true}
	}()
	return events, nil
}

// decodeDataLine unwraps an SSE data payload. JSON fragments carry the
// text in known fields; anything else passes through as raw text.
func decodeDataLine(payload string) string {
	if payload == "" || payload == "[DONE]" {
		return ""
	}
	if strings.HasPrefix(payload, "{") {
		var frag struct {
			Text  string `json:"text"`
			Delta string `json:"delta"`
			Chunk string `json:"chunk"`
		}
		if err := json.Unmarshal([]byte(payload), &frag); err == nil {
			switch {
			case frag.Text != "":
				return frag.Text
			case frag.Delta != "":
				return frag.Delta
			case frag.Chunk != "":
				return frag.Chunk
			}
			return ""
		}
	}
	return payload
}
