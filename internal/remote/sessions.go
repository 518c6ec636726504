package remote

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/agentforge/api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionTable holds in-memory chat sessions keyed by a deterministic
// user+agent hash, so a user returning to the same agent resumes the same
// conversation. Idle sessions are evicted by a background janitor.
type SessionTable struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	idleTTL  time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionTable creates a session table and starts its eviction janitor.
// An idleTTL of zero disables eviction.
func NewSessionTable(idleTTL time.Duration, logger *zap.Logger) *SessionTable {
	t := &SessionTable{
		sessions: make(map[string]*models.ChatSession),
		idleTTL:  idleTTL,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go t.janitor()
	}
	return t
}

// SessionIDFor derives the deterministic session id for a user+agent pair.
// Runtime session ids must be at least 33 characters; the fixed framing
// plus the 24-char hash satisfies that.
func SessionIDFor(userEmail, agentRef string) string {
	sum := sha256.Sum256([]byte(userEmail + ":" + agentRef))
	return fmt.Sprintf("session-%s-chat", hex.EncodeToString(sum[:])[:24])
}

// Create returns the session id for a user+agent pair, resuming an
// existing session when one is live. An empty user email falls back to a
// random, non-resumable session.
func (t *SessionTable) Create(agentRef, userEmail string) string {
	var sessionID string
	if userEmail == "" {
		sessionID = uuid.New().String()
	} else {
		sessionID = SessionIDFor(userEmail, agentRef)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.sessions[sessionID]; ok {
		t.logger.Info("resuming existing chat session", zap.String("session_id", sessionID))
		existing.LastActivity = time.Now()
		return sessionID
	}

	now := time.Now()
	t.sessions[sessionID] = &models.ChatSession{
		SessionID:    sessionID,
		AgentRef:     agentRef,
		Messages:     []models.ChatMessage{},
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}
	t.logger.Info("created new chat session", zap.String("session_id", sessionID))
	return sessionID
}

// Get returns a copy of a session, or nil when it does not exist
func (t *SessionTable) Get(sessionID string) *models.ChatSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *session
	copied.Messages = append([]models.ChatMessage(nil), session.Messages...)
	return &copied
}

// Append adds a message to a session and bumps its activity time
func (t *SessionTable) Append(sessionID string, msg models.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	session.Messages = append(session.Messages, msg)
	session.LastActivity = time.Now()
	return true
}

// History returns the messages of a session, empty when unknown
func (t *SessionTable) History(sessionID string) []models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[sessionID]
	if !ok {
		return []models.ChatMessage{}
	}
	return append([]models.ChatMessage(nil), session.Messages...)
}

// ListActive returns copies of all active sessions
func (t *SessionTable) ListActive() []models.ChatSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	var active []models.ChatSession
	for _, session := range t.sessions {
		if !session.IsActive {
			continue
		}
		copied := *session
		copied.Messages = append([]models.ChatMessage(nil), session.Messages...)
		active = append(active, copied)
	}
	return active
}

// Close marks a session inactive without discarding its history
func (t *SessionTable) Close(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	session.IsActive = false
	t.logger.Info("closed chat session", zap.String("session_id", sessionID))
	return true
}

// Delete removes a session entirely
func (t *SessionTable) Delete(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; !ok {
		return false
	}
	delete(t.sessions, sessionID)
	t.logger.Info("deleted chat session", zap.String("session_id", sessionID))
	return true
}

// Stop halts the eviction janitor
func (t *SessionTable) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *SessionTable) janitor() {
	interval := t.idleTTL / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.evictIdle()
		case <-t.stop:
			return
		}
	}
}

func (t *SessionTable) evictIdle() {
	cutoff := time.Now().Add(-t.idleTTL)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, session := range t.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(t.sessions, id)
			t.logger.Info("evicted idle chat session", zap.String("session_id", id))
		}
	}
}
