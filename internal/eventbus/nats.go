// Package eventbus publishes generation lifecycle events over NATS.
// Every publisher is nil-safe: a missing broker degrades to no events,
// never to a failed request.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectGenerationStarted   = "codegen.generation.started"
	SubjectGenerationCompleted = "codegen.generation.completed"
	SubjectGenerationFailed    = "codegen.generation.failed"
	SubjectArtifactsDeleted    = "codegen.artifacts.deleted"
)

// Bus wraps a NATS connection for lifecycle events
type Bus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials NATS. Connection failure is reported to the caller, who
// typically runs without events rather than refusing to start.
func Connect(natsURL string, logger *zap.Logger) (*Bus, error) {
	conn, err := nats.Connect(natsURL,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to NATS", zap.String("url", natsURL))
	return &Bus{conn: conn, logger: logger}, nil
}

// Close drains the connection. Safe on a nil bus.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Close()
}

// GenerationEvent is the payload published on generation subjects
type GenerationEvent struct {
	RequestID        string    `json:"request_id"`
	UserID           string    `json:"user_id,omitempty"`
	ModelID          string    `json:"model_id,omitempty"`
	GenerationMethod string    `json:"generation_method,omitempty"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func (b *Bus) publish(subject string, event GenerationEvent) {
	if b == nil || b.conn == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("could not encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("could not publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// PublishGenerationStarted announces a new generation request
func (b *Bus) PublishGenerationStarted(requestID, userID, modelID string) {
	b.publish(SubjectGenerationStarted, GenerationEvent{
		RequestID: requestID,
		UserID:    userID,
		ModelID:   modelID,
	})
}

// PublishGenerationCompleted announces a finished generation
func (b *Bus) PublishGenerationCompleted(requestID, userID, modelID, method string) {
	b.publish(SubjectGenerationCompleted, GenerationEvent{
		RequestID:        requestID,
		UserID:           userID,
		ModelID:          modelID,
		GenerationMethod: method,
	})
}

// PublishGenerationFailed announces a failed generation
func (b *Bus) PublishGenerationFailed(requestID, userID string, cause error) {
	event := GenerationEvent{RequestID: requestID, UserID: userID}
	if cause != nil {
		event.Error = cause.Error()
	}
	b.publish(SubjectGenerationFailed, event)
}

// PublishArtifactsDeleted announces removal of stored artifacts
func (b *Bus) PublishArtifactsDeleted(requestID, userID string) {
	b.publish(SubjectArtifactsDeleted, GenerationEvent{
		RequestID: requestID,
		UserID:    userID,
	})
}
