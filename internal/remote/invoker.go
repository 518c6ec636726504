package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentforge/api/internal/artifacts"
	"github.com/agentforge/api/internal/extract"
	"github.com/agentforge/api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FrameType discriminates streamed generation frames
type FrameType int

const (
	// FrameText carries one chunk of decoded model output
	FrameText FrameType = iota
	// FrameBlank preserves event separation from the upstream stream
	FrameBlank
	// FrameFinal is the terminal frame with the accumulated result
	FrameFinal
)

// Frame is one unit of a streamed generation. The transport sentinel that
// marks the final frame is a concern of the HTTP boundary, not of this
// type.
type Frame struct {
	Type  FrameType
	Text  string
	Final *FinalPayload
}

// FinalPayload closes a generation stream
type FinalPayload struct {
	Success  bool                   `json:"success"`
	Code     string                 `json:"code"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Invoker delegates code generation to the deployed expert agent
type Invoker struct {
	runtime   Runtime
	extractor *extract.Extractor
	store     *artifacts.Store
	enabled   bool
	agentRef  string
	logger    *zap.Logger
}

// NewInvoker creates a remote generation invoker. enabled and agentRef
// come from configuration; when either gate fails every call returns
// ErrUnavailable.
func NewInvoker(runtime Runtime, extractor *extract.Extractor, store *artifacts.Store, enabled bool, agentRef string, logger *zap.Logger) *Invoker {
	return &Invoker{
		runtime:   runtime,
		extractor: extractor,
		store:     store,
		enabled:   enabled,
		agentRef:  agentRef,
		logger:    logger,
	}
}

type generatePayload struct {
	Config         *models.VisualConfig   `json:"config"`
	ModelID        string                 `json:"model_id"`
	AdvancedConfig *models.AdvancedConfig `json:"advanced_config,omitempty"`
	RequestID      string                 `json:"request_id"`
	Stream         bool                   `json:"stream,omitempty"`
}

// available gates remote delegation: the feature flag, a discoverable
// agent ref, and a runtime that is not failed or still starting.
func (i *Invoker) available(ctx context.Context) error {
	if !i.enabled {
		i.logger.Info("remote runtime disabled, using local agent")
		return ErrUnavailable
	}
	if i.agentRef == "" {
		i.logger.Info("no remote agent ref configured, using local agent")
		return ErrUnavailable
	}

	state, err := i.runtime.Status(ctx, i.agentRef)
	if err != nil {
		// A status check failure alone does not block the invocation
		// attempt, except when the agent is known not to exist.
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		i.logger.Warn("could not check remote agent status", zap.Error(err))
		return nil
	}
	switch state {
	case models.AgentStateFailed:
		i.logger.Error("remote agent runtime is in FAILED state")
		return fmt.Errorf("%w: runtime failed", ErrUnavailable)
	case models.AgentStateCreating:
		i.logger.Warn("remote agent runtime is still being created")
		return fmt.Errorf("%w: runtime still creating", ErrUnavailable)
	case models.AgentStateUnknown:
		i.logger.Warn("proceeding with invocation despite unknown runtime status")
	}
	return nil
}

// sessionID builds a runtime session id tied to the correlation id.
// Runtime session ids are length-capped.
func sessionID(requestID string) string {
	id := fmt.Sprintf("codegen_%s_%s", requestID, uuid.New().String())
	if len(id) > 50 {
		id = id[:50]
	}
	return id
}

// Generate runs one buffered remote generation. ErrUnavailable and every
// other failure mean "fall back to local"; the caller decides what the
// user sees.
func (i *Invoker) Generate(ctx context.Context, config *models.VisualConfig, modelID string, advanced *models.AdvancedConfig, requestID string) (*models.GenerationResult, error) {
	if err := i.available(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(generatePayload{
		Config:         config,
		ModelID:        modelID,
		AdvancedConfig: advanced,
		RequestID:      requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode remote payload: %w", err)
	}

	i.logger.Info("invoking remote expert agent",
		zap.String("request_id", requestID),
		zap.String("agent_ref", i.agentRef))

	inv, err := i.runtime.Invoke(ctx, i.agentRef, sessionID(requestID), payload)
	if err != nil {
		i.logger.Warn("remote expert agent failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer inv.Body.Close()

	raw, err := i.collectResponse(inv)
	if err != nil {
		i.logger.Warn("could not read remote response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return i.reconstruct(ctx, raw, requestID)
}

// collectResponse buffers a runtime response into a decoded document. SSE
// bodies are joined line-wise before decoding.
func (i *Invoker) collectResponse(inv *Invocation) (map[string]interface{}, error) {
	var text string
	if strings.Contains(inv.ContentType, "text/event-stream") {
		var lines []string
		scanner := bufio.NewScanner(inv.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			line = strings.TrimPrefix(line, "data: ")
			lines = append(lines, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		text = strings.Join(lines, "\n")
	} else {
		scanner := bufio.NewScanner(inv.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var b strings.Builder
		for scanner.Scan() {
			b.WriteString(scanner.Text())
			b.WriteString("\n")
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		text = b.String()
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		doc = map[string]interface{}{"result": text}
	}
	return doc, nil
}

// reconstruct turns a remote response document into the uniform result
// envelope. Structured results pass through; raw model responses go back
// through extraction, preferring stored artifacts over regex recovery.
func (i *Invoker) reconstruct(ctx context.Context, doc map[string]interface{}, requestID string) (*models.GenerationResult, error) {
	inner, ok := doc["result"]
	if !ok {
		i.logger.Warn("no result field in remote response")
		return nil, fmt.Errorf("%w: malformed remote response", ErrUnavailable)
	}

	if structured, ok := inner.(map[string]interface{}); ok {
		if _, hasCode := structured["generated_code"]; hasCode {
			return i.passThrough(structured, requestID), nil
		}
	}

	responseText, err := i.extractor.Text(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	refs := i.extractor.StorageRefs(responseText)
	var code string
	if len(refs) > 0 && requestID != "" {
		i.logger.Info("remote expert agent used artifact storage, fetching code",
			zap.String("request_id", requestID))
		art, err := i.store.Get(ctx, requestID, artifacts.SlotAgentCode)
		if err != nil {
			i.logger.Warn("failed to fetch stored artifact, using placeholder", zap.Error(err))
			code = "Code stored in artifact storage"
		} else {
			code = art.Content
		}
	} else {
		extraction := i.extractor.CodeWithFallbacks(responseText)
		if !extraction.Success {
			code = "Code generated by remote expert agent"
		} else {
			code = extraction.Code
		}
	}

	meta := i.extractor.Metadata(responseText, code)
	metadata := map[string]interface{}{
		"generation_method":      "remote_expert",
		"request_id":             requestID,
		"response_length":        meta.ResponseLength,
		"code_length":            meta.CodeLength,
		"testing_completed":      meta.TestingCompleted,
		"configuration_analysis": meta.ConfigurationAnalysis,
	}
	if len(refs) > 0 {
		uris := make(map[string]string, len(refs))
		for slot, uri := range refs {
			uris[string(slot)] = uri
		}
		metadata["storage_refs"] = uris
	}

	return &models.GenerationResult{
		ConfigurationAnalysis: orDefault(meta.ConfigurationAnalysis, "Analysis completed"),
		GeneratedCode:         code,
		TestingVerification:   orDefault(meta.TestingVerification, "Testing completed"),
		FinalWorkingCode:      code,
		ReasoningProcess:      meta.ReasoningProcess,
		Metadata:              metadata,
	}, nil
}

// passThrough forwards an already-structured remote result, stamping the
// generation method and correlation id.
func (i *Invoker) passThrough(structured map[string]interface{}, requestID string) *models.GenerationResult {
	metadata := map[string]interface{}{}
	if m, ok := structured["metadata"].(map[string]interface{}); ok {
		for k, v := range m {
			metadata[k] = v
		}
	}
	metadata["generation_method"] = "remote_expert"
	metadata["request_id"] = requestID

	return &models.GenerationResult{
		ConfigurationAnalysis: stringField(structured, "configuration_analysis", "Analysis completed"),
		GeneratedCode:         stringField(structured, "generated_code", "Code stored in artifact storage"),
		TestingVerification:   stringField(structured, "testing_verification", "Testing completed"),
		FinalWorkingCode:      stringField(structured, "final_working_code", "Code stored in artifact storage"),
		ReasoningProcess:      stringField(structured, "reasoning_process", ""),
		Metadata:              metadata,
	}
}

// GenerateStream runs one streaming remote generation, re-framing the
// upstream SSE stream into discriminated frames. The last frame is always
// FrameFinal carrying the accumulated text.
func (i *Invoker) GenerateStream(ctx context.Context, config *models.VisualConfig, modelID string, advanced *models.AdvancedConfig, requestID string) (<-chan Frame, error) {
	if err := i.available(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(generatePayload{
		Config:         config,
		ModelID:        modelID,
		AdvancedConfig: advanced,
		RequestID:      requestID,
		Stream:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode remote payload: %w", err)
	}

	inv, err := i.runtime.Invoke(ctx, i.agentRef, sessionID(requestID), payload)
	if err != nil {
		i.logger.Warn("remote expert agent failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !strings.Contains(inv.ContentType, "text/event-stream") {
		inv.Body.Close()
		return nil, fmt.Errorf("%w: runtime did not stream", ErrUnavailable)
	}

	frames := make(chan Frame, 64)
	go func() {
		defer close(frames)
		defer inv.Body.Close()

		var accumulated strings.Builder
		chunkCount := 0

		scanner := bufio.NewScanner(inv.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			chunkCount++

			switch {
			case strings.HasPrefix(line, "data: "):
				chunk := line[len("data: "):]
				// Upstream sends JSON-quoted strings; decode when possible,
				// pass raw text through otherwise.
				var decoded string
				if err := json.Unmarshal([]byte(chunk), &decoded); err != nil {
					decoded = chunk
				}
				accumulated.WriteString(decoded)
				if !emit(ctx, frames, Frame{Type: FrameText, Text: decoded}) {
					return
				}
			case strings.TrimSpace(line) == "":
				if !emit(ctx, frames, Frame{Type: FrameBlank}) {
					return
				}
			default:
				accumulated.WriteString(line + "\n")
				if !emit(ctx, frames, Frame{Type: FrameText, Text: line}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			// A truncated stream must not masquerade as a complete one:
			// end without a final frame so the consumer sees the cut.
			i.logger.Error("remote stream read failed",
				zap.String("request_id", requestID), zap.Error(err))
			return
		}

		i.logger.Info("remote streaming completed",
			zap.String("request_id", requestID),
			zap.Int("chunks", chunkCount))

		emit(ctx, frames, Frame{
			Type: FrameFinal,
			Final: &FinalPayload{
				Success: true,
				Code:    accumulated.String(),
				Metadata: map[string]interface{}{
					"request_id":        requestID,
					"streaming":         true,
					"generation_method": "remote_expert_streaming",
				},
			},
		})
	}()
	return frames, nil
}

func emit(ctx context.Context, frames chan<- Frame, frame Frame) bool {
	select {
	case frames <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func stringField(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
