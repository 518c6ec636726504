package generation

import (
	"context"
	"errors"
	"time"

	"github.com/agentforge/api/internal/llm"
	"github.com/agentforge/api/internal/metrics"
	"github.com/agentforge/api/internal/prompt"
	"github.com/agentforge/api/internal/remote"
	"go.uber.org/zap"
)

// GenerateStream runs one streaming generation. The frame channel always
// ends with a FrameFinal carrying the reconstructed result; transport
// framing (SSE lines, final-frame sentinel) is the HTTP handler's job.
func (s *Service) GenerateStream(ctx context.Context, req Request) (string, <-chan remote.Frame, error) {
	requestID := NewRequestID()

	s.logger.Info("starting streaming code generation",
		zap.String("request_id", requestID),
		zap.String("config", prompt.Describe(req.Config)))

	modelID := s.resolver.EffectiveModelID(ctx, req.Config.ExpertAgentModel, req.UserEmail)
	s.bus.PublishGenerationStarted(requestID, req.UserID, modelID)

	if s.invoker != nil {
		frames, err := s.invoker.GenerateStream(ctx, req.Config, modelID, req.Config.Advanced, requestID)
		if err == nil {
			return requestID, frames, nil
		}
		if !errors.Is(err, remote.ErrUnavailable) {
			s.logger.Warn("remote streaming failed, falling back to local",
				zap.String("request_id", requestID), zap.Error(err))
		}
		metrics.RemoteFallbacksTotal.Inc()
	}

	frames, err := s.streamLocal(ctx, req, modelID, requestID)
	if err != nil {
		s.bus.PublishGenerationFailed(requestID, req.UserID, err)
		return requestID, nil, err
	}
	return requestID, frames, nil
}

// streamLocal streams the local model path, re-framing chunks and closing
// with a final frame built from the accumulated response.
func (s *Service) streamLocal(ctx context.Context, req Request, modelID, requestID string) (<-chan remote.Frame, error) {
	start := time.Now()
	promptText := prompt.Freeform(req.Config, requestID)

	temp := s.temperature
	llmReq := llm.Request{
		Prompt:      promptText,
		ModelID:     modelID,
		Temperature: &temp,
	}
	if adv := req.Config.Advanced; adv != nil {
		if adv.Temperature != nil {
			llmReq.Temperature = adv.Temperature
		}
		llmReq.TopP = adv.TopP
		llmReq.EnableReasoning = adv.EnableReasoning
		llmReq.EnablePromptCaching = adv.EnablePromptCaching
	}

	events, err := s.client.Stream(ctx, llmReq)
	if err != nil {
		return nil, err
	}

	frames := make(chan remote.Frame, 64)
	go func() {
		defer close(frames)

		var full string
		for event := range events {
			if event.Err != nil {
				s.logger.Error("local stream failed",
					zap.String("request_id", requestID), zap.Error(event.Err))
				metrics.GenerationsTotal.WithLabelValues("free_form_streaming", "error").Inc()
				s.bus.PublishGenerationFailed(requestID, req.UserID, event.Err)
				return
			}
			if event.Done {
				full = event.Text
				continue
			}
			select {
			case frames <- remote.Frame{Type: remote.FrameText, Text: event.Text}:
			case <-ctx.Done():
				return
			}
		}

		final := remote.FinalPayload{
			Metadata: map[string]interface{}{
				"request_id":        requestID,
				"streaming":         true,
				"generation_method": "free_form_streaming",
			},
		}
		result, err := s.reconstructLocal(ctx, full, requestID, "free_form_streaming")
		if err != nil {
			s.logger.Warn("could not reconstruct streamed result",
				zap.String("request_id", requestID), zap.Error(err))
			final.Success = false
			final.Code = full
		} else {
			s.finalize(result, req, s.gate.ScanInput(prompt.ConfigJSON(req.Config)), modelID, requestID)
			final.Success = true
			final.Code = result.FinalWorkingCode
			for k, v := range result.Metadata {
				final.Metadata[k] = v
			}
			final.Metadata["generation_method"] = "free_form_streaming"
		}

		latency := time.Since(start)
		if final.Success {
			metrics.GenerationsTotal.WithLabelValues("free_form_streaming", "success").Inc()
			metrics.GenerationDuration.WithLabelValues("free_form_streaming").Observe(latency.Seconds())
			s.bus.PublishGenerationCompleted(requestID, req.UserID, modelID, "free_form_streaming")
			s.recordLog(req, result, modelID, requestID, "free_form_streaming", latency)
		} else {
			metrics.GenerationsTotal.WithLabelValues("free_form_streaming", "error").Inc()
			s.bus.PublishGenerationFailed(requestID, req.UserID, err)
		}

		select {
		case frames <- remote.Frame{Type: remote.FrameFinal, Final: &final}:
		case <-ctx.Done():
		}
	}()
	return frames, nil
}
