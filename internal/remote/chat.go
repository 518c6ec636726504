package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentforge/api/internal/extract"
	"github.com/agentforge/api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService drives chat conversations with deployed agents
type ChatService struct {
	runtime   Runtime
	sessions  *SessionTable
	extractor *extract.Extractor
	logger    *zap.Logger
}

// NewChatService creates a chat service over a runtime and session table
func NewChatService(runtime Runtime, sessions *SessionTable, extractor *extract.Extractor, logger *zap.Logger) *ChatService {
	return &ChatService{
		runtime:   runtime,
		sessions:  sessions,
		extractor: extractor,
		logger:    logger,
	}
}

// InvokeResult is one completed chat turn
type InvokeResult struct {
	SessionID string                 `json:"session_id"`
	Response  string                 `json:"response"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

type chatPayload struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	UserEmail string `json:"user_email,omitempty"`
}

// ensureSession resolves or creates the session for an invocation
func (c *ChatService) ensureSession(agentRef, sessionID, userEmail string) string {
	if sessionID != "" && c.sessions.Get(sessionID) != nil {
		return sessionID
	}
	return c.sessions.Create(agentRef, userEmail)
}

// statusGate refuses invocation of agents known to be unusable
func (c *ChatService) statusGate(ctx context.Context, agentRef string) error {
	state, err := c.runtime.Status(ctx, agentRef)
	if err != nil {
		c.logger.Warn("could not check agent status", zap.Error(err))
		return nil
	}
	switch state {
	case models.AgentStateFailed:
		return fmt.Errorf("agent runtime is in FAILED state")
	case models.AgentStateCreating:
		return fmt.Errorf("agent runtime is still being created")
	case models.AgentStateUnknown:
		c.logger.Warn("proceeding with invocation despite unknown status",
			zap.String("agent_ref", agentRef))
	}
	return nil
}

// Invoke sends a message to a deployed agent and waits for the reply
func (c *ChatService) Invoke(ctx context.Context, agentRef, message, sessionID, userEmail string) (*InvokeResult, error) {
	sessionID = c.ensureSession(agentRef, sessionID, userEmail)

	if err := c.statusGate(ctx, agentRef); err != nil {
		return nil, err
	}

	c.sessions.Append(sessionID, models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   message,
		Timestamp: time.Now(),
		Status:    models.StatusSent,
	})

	payload, err := json.Marshal(chatPayload{
		Prompt:    message,
		SessionID: sessionID,
		UserEmail: userEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat payload: %w", err)
	}

	c.logger.Info("invoking deployed agent",
		zap.String("agent_ref", agentRef),
		zap.String("session_id", sessionID))

	inv, err := c.runtime.Invoke(ctx, agentRef, sessionID, payload)
	if err != nil {
		c.recordError(sessionID, "agent invocation failed")
		return nil, fmt.Errorf("agent invocation failed: %w", err)
	}
	defer inv.Body.Close()

	responseText, metadata, err := c.decodeResponse(inv)
	if err != nil {
		c.recordError(sessionID, "could not process agent response")
		return nil, err
	}

	c.sessions.Append(sessionID, models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   responseText,
		Timestamp: time.Now(),
		Status:    models.StatusSent,
	})

	return &InvokeResult{
		SessionID: sessionID,
		Response:  responseText,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}, nil
}

// InvokeStreaming sends a message and streams the reply chunk-wise. The
// complete reply is recorded in session history once the stream ends.
func (c *ChatService) InvokeStreaming(ctx context.Context, agentRef, message, sessionID, userEmail string) (string, <-chan string, error) {
	sessionID = c.ensureSession(agentRef, sessionID, userEmail)

	c.sessions.Append(sessionID, models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   message,
		Timestamp: time.Now(),
		Status:    models.StatusSent,
	})

	payload, err := json.Marshal(chatPayload{
		Prompt:    message,
		SessionID: sessionID,
		UserEmail: userEmail,
	})
	if err != nil {
		return sessionID, nil, fmt.Errorf("encode chat payload: %w", err)
	}

	inv, err := c.runtime.Invoke(ctx, agentRef, sessionID, payload)
	if err != nil {
		c.recordError(sessionID, "agent streaming invocation failed")
		return sessionID, nil, fmt.Errorf("agent streaming invocation failed: %w", err)
	}

	chunks := make(chan string, 64)
	go func() {
		defer close(chunks)
		defer inv.Body.Close()

		var complete strings.Builder

		if strings.Contains(inv.ContentType, "text/event-stream") {
			scanner := bufio.NewScanner(inv.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				chunk := line[len("data: "):]
				complete.WriteString(chunk)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err := scanner.Err(); err != nil {
				c.logger.Error("chat stream read failed", zap.Error(err))
			}
		} else {
			// Non-streaming runtime reply: deliver it in one chunk
			responseText, _, err := c.decodeResponse(inv)
			if err != nil {
				c.logger.Error("could not process agent response", zap.Error(err))
				return
			}
			complete.WriteString(responseText)
			select {
			case chunks <- responseText:
			case <-ctx.Done():
				return
			}
		}

		c.sessions.Append(sessionID, models.ChatMessage{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Content:   complete.String(),
			Timestamp: time.Now(),
			Status:    models.StatusSent,
		})
	}()
	return sessionID, chunks, nil
}

// decodeResponse buffers a runtime reply and normalizes it to clean text
func (c *ChatService) decodeResponse(inv *Invocation) (string, map[string]interface{}, error) {
	scanner := bufio.NewScanner(inv.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var b strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimPrefix(line, "data: ")
		b.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("read agent response: %w", err)
	}
	raw := b.String()

	metadata := map[string]interface{}{"content_type": inv.ContentType}

	if strings.Contains(inv.ContentType, "application/json") {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			if m, ok := doc["metadata"].(map[string]interface{}); ok {
				for k, v := range m {
					metadata[k] = v
				}
			}
			var source interface{} = doc
			if inner, ok := doc["result"]; ok {
				source = inner
			}
			text, err := c.extractor.Text(source)
			if err != nil {
				return "", nil, fmt.Errorf("normalize agent response: %w", err)
			}
			return text, metadata, nil
		}
	}
	return raw, metadata, nil
}

func (c *ChatService) recordError(sessionID, message string) {
	c.sessions.Append(sessionID, models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleSystem,
		Content:   message,
		Timestamp: time.Now(),
		Status:    models.StatusError,
	})
}
