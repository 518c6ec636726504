// Package generation orchestrates the code generation pipeline: model
// resolution, remote-first delegation with local fallback, response
// extraction, security screening and bookkeeping.
package generation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentforge/api/internal/artifacts"
	"github.com/agentforge/api/internal/database"
	"github.com/agentforge/api/internal/eventbus"
	"github.com/agentforge/api/internal/extract"
	"github.com/agentforge/api/internal/gate"
	"github.com/agentforge/api/internal/llm"
	"github.com/agentforge/api/internal/metrics"
	"github.com/agentforge/api/internal/models"
	"github.com/agentforge/api/internal/modelid"
	"github.com/agentforge/api/internal/prompt"
	"github.com/agentforge/api/internal/remote"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("agentforge/generation")

// Service runs the generation pipeline. Bookkeeping collaborators (db,
// bus) are nil-safe: their absence degrades observability, never requests.
type Service struct {
	client    llm.Client
	invoker   *remote.Invoker
	extractor *extract.Extractor
	store     *artifacts.Store
	resolver  *modelid.Resolver
	gate      *gate.Gate
	db        *database.Postgres
	bus       *eventbus.Bus
	logger    *zap.Logger

	temperature float64
}

// NewService creates the generation orchestrator. invoker may be nil when
// no remote runtime is configured; db and bus may be nil.
func NewService(client llm.Client, invoker *remote.Invoker, extractor *extract.Extractor, store *artifacts.Store, resolver *modelid.Resolver, g *gate.Gate, db *database.Postgres, bus *eventbus.Bus, temperature float64, logger *zap.Logger) *Service {
	return &Service{
		client:      client,
		invoker:     invoker,
		extractor:   extractor,
		store:       store,
		resolver:    resolver,
		gate:        g,
		db:          db,
		bus:         bus,
		logger:      logger,
		temperature: temperature,
	}
}

// Request is one generation request after HTTP binding
type Request struct {
	Config    *models.VisualConfig
	UserID    string
	UserEmail string
}

// NewRequestID mints a correlation id. The id doubles as the artifact
// storage prefix, so it stays short and key-safe.
func NewRequestID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Extremely unlikely; fall back to a time-derived id
		return fmt.Sprintf("req_%012x", time.Now().UnixNano()&0xffffffffffff)
	}
	return "req_" + hex.EncodeToString(buf[:])
}

// Generate runs one buffered generation end to end
func (s *Service) Generate(ctx context.Context, req Request) (*models.GenerationResult, error) {
	start := time.Now()
	requestID := NewRequestID()

	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	s.logger.Info("starting code generation",
		zap.String("request_id", requestID),
		zap.String("config", prompt.Describe(req.Config)))

	configJSON := prompt.ConfigJSON(req.Config)
	inputReport := s.gate.ScanInput(configJSON)

	modelID := s.resolver.EffectiveModelID(ctx, req.Config.ExpertAgentModel, req.UserEmail)
	span.SetAttributes(attribute.String("model_id", modelID))

	s.bus.PublishGenerationStarted(requestID, req.UserID, modelID)

	result, method, err := s.strategy().Run(ctx, req, modelID, requestID)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(method, "error").Inc()
		s.bus.PublishGenerationFailed(requestID, req.UserID, err)
		return nil, err
	}

	s.finalize(result, req, inputReport, modelID, requestID)

	latency := time.Since(start)
	metrics.GenerationsTotal.WithLabelValues(method, "success").Inc()
	metrics.GenerationDuration.WithLabelValues(method).Observe(latency.Seconds())
	s.bus.PublishGenerationCompleted(requestID, req.UserID, modelID, method)
	s.recordLog(req, result, modelID, requestID, method, latency)

	s.logger.Info("generation completed",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.Duration("latency", latency))
	return result, nil
}

// generateLocal is the local path: prompt the model directly and recover
// the result from its free-form response.
func (s *Service) generateLocal(ctx context.Context, req Request, modelID, requestID string) (*models.GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "generation.local")
	defer span.End()

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

	raw, err := s.client.Call(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	responseText, err := s.extractor.Text(raw)
	if err != nil {
		return nil, fmt.Errorf("response normalization failed: %w", err)
	}
	if extract.HasEscapeArtifacts(responseText) {
		s.logger.Error("model response contains escape sequence artifacts",
			zap.String("request_id", requestID))
	}

	return s.reconstructLocal(ctx, responseText, requestID, "free_form")
}

// reconstructLocal turns normalized response text into the result
// envelope, preferring stored artifacts over regex recovery.
func (s *Service) reconstructLocal(ctx context.Context, responseText, requestID, method string) (*models.GenerationResult, error) {
	refs := s.extractor.StorageRefs(responseText)
	if len(refs) == 0 {
		// The model may have stored artifacts without echoing the URIs
		refs = s.extractor.ProbeStore(ctx, s.store, requestID)
	}

	var code string
	var extractionMethod string
	if len(refs) > 0 {
		art, err := s.store.Get(ctx, requestID, artifacts.SlotAgentCode)
		if err != nil {
			s.logger.Warn("stored artifact fetch failed, falling back to extraction",
				zap.String("request_id", requestID), zap.Error(err))
		} else {
			code = art.Content
			extractionMethod = "artifact_storage"
		}
	}
	if code == "" {
		extraction := s.extractor.CodeWithFallbacks(responseText)
		if !extraction.Success {
			metrics.ExtractionMethodTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("code extraction failed: %s", extraction.Error)
		}
		code = extraction.Code
		extractionMethod = extraction.Method
	}
	metrics.ExtractionMethodTotal.WithLabelValues(extractionMethod).Inc()

	code = s.extractor.CleanupFormatting(code)
	meta := s.extractor.Metadata(responseText, code)

	metadata := map[string]interface{}{
		"generation_method": method,
		"request_id":        requestID,
		"extraction_method": extractionMethod,
		"response_length":   meta.ResponseLength,
		"code_length":       len(code),
		"testing_completed": meta.TestingCompleted,
	}
	if len(refs) > 0 {
		uris := make(map[string]string, len(refs))
		for slot, uri := range refs {
			uris[string(slot)] = uri
		}
		metadata["storage_refs"] = uris
	}

	analysis := meta.ConfigurationAnalysis
	if analysis == "" {
		analysis = "Analysis completed"
	}
	testing := meta.TestingVerification
	if testing == "" {
		testing = "Testing completed"
	}

	return &models.GenerationResult{
		ConfigurationAnalysis: analysis,
		GeneratedCode:         code,
		TestingVerification:   testing,
		FinalWorkingCode:      code,
		ReasoningProcess:      meta.ReasoningProcess,
		Metadata:              metadata,
	}, nil
}

// finalize applies the security gate and stamps shared metadata. The gate
// annotates only: unsafe code is flagged and returned, never blocked here.
func (s *Service) finalize(result *models.GenerationResult, req Request, inputReport gate.InputReport, modelID, requestID string) {
	codeReport := s.gate.ScanCode(result.FinalWorkingCode)
	structure := s.gate.ValidateStructure(result.FinalWorkingCode)
	if !codeReport.IsSafe {
		metrics.UnsafeGenerationsTotal.Inc()
	}

	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["request_id"] = requestID
	result.Metadata["model"] = modelID
	result.Metadata["agent_count"] = len(req.Config.Agents)
	result.Metadata["tool_count"] = len(req.Config.Tools)
	result.Metadata["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	result.Metadata["input_validation"] = inputReport
	result.Metadata["security_validation"] = codeReport
	result.Metadata["validation"] = structure
}

func (s *Service) recordLog(req Request, result *models.GenerationResult, modelID, requestID, method string, latency time.Duration) {
	if s.db == nil {
		return
	}
	isSafe := true
	if report, ok := result.Metadata["security_validation"].(gate.CodeReport); ok {
		isSafe = report.IsSafe
	}
	entry := database.GenerationLog{
		RequestID:        requestID,
		UserID:           req.UserID,
		ModelID:          modelID,
		GenerationMethod: method,
		AgentCount:       len(req.Config.Agents),
		ToolCount:        len(req.Config.Tools),
		CodeLength:       len(result.FinalWorkingCode),
		IsSafe:           isSafe,
		LatencyMs:        latency.Milliseconds(),
	}
	// Bookkeeping runs on a background context so request cancellation
	// cannot lose the record.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.InsertGenerationLog(ctx, entry); err != nil {
		s.logger.Warn("could not record generation log",
			zap.String("request_id", requestID), zap.Error(err))
	}
}
