package handlers

import (
	"net/http"
	"strings"

	"github.com/agentforge/api/internal/middleware"
	"github.com/agentforge/api/internal/remote"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler exposes chat with deployed agents
type ChatHandler struct {
	chat     *remote.ChatService
	sessions *remote.SessionTable
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *remote.ChatService, sessions *remote.SessionTable, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, logger: logger}
}

// InvokeRequest is the request body for agent invocation
type InvokeRequest struct {
	AgentRef  string `json:"agent_ref" binding:"required"`
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// Invoke handles POST /api/v1/chat/invoke
func (h *ChatHandler) Invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}
	userEmail, _ := middleware.GetUserEmail(c)

	result, err := h.chat.Invoke(c.Request.Context(), req.AgentRef, req.Message, req.SessionID, userEmail)
	if err != nil {
		h.logger.Error("agent invocation failed",
			zap.String("agent_ref", req.AgentRef), zap.Error(err))
		middleware.RespondErrorWithDetails(c, http.StatusBadGateway,
			middleware.ErrCodeModelServiceUnavailable, "agent invocation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// InvokeStream handles POST /api/v1/chat/invoke/stream
func (h *ChatHandler) InvokeStream(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}
	userEmail, _ := middleware.GetUserEmail(c)

	sessionID, chunks, err := h.chat.InvokeStreaming(c.Request.Context(), req.AgentRef, req.Message, req.SessionID, userEmail)
	if err != nil {
		h.logger.Error("agent streaming invocation failed",
			zap.String("agent_ref", req.AgentRef), zap.Error(err))
		middleware.RespondErrorWithDetails(c, http.StatusBadGateway,
			middleware.ErrCodeModelServiceUnavailable, "agent invocation failed", err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Session-Id", sessionID)

	escaper := strings.NewReplacer("\n", `\n`, "\r", `\r`)
	for chunk := range chunks {
		c.Writer.WriteString("data: " + escaper.Replace(chunk) + "\n\n")
		c.Writer.Flush()
	}
}

// CreateSessionRequest is the request body for session creation
type CreateSessionRequest struct {
	AgentRef string `json:"agent_ref" binding:"required"`
}

// CreateSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}
	userEmail, _ := middleware.GetUserEmail(c)

	sessionID := h.sessions.Create(req.AgentRef, userEmail)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// ListSessions handles GET /api/v1/chat/sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions := h.sessions.ListActive()
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// SessionHistory handles GET /api/v1/chat/sessions/:id/history
func (h *ChatHandler) SessionHistory(c *gin.Context) {
	sessionID := c.Param("id")
	if h.sessions.Get(sessionID) == nil {
		middleware.NotFound(c, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   h.sessions.History(sessionID),
	})
}

// CloseSession handles POST /api/v1/chat/sessions/:id/close
func (h *ChatHandler) CloseSession(c *gin.Context) {
	sessionID := c.Param("id")
	if !h.sessions.Close(sessionID) {
		middleware.NotFound(c, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// DeleteSession handles DELETE /api/v1/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if !h.sessions.Delete(sessionID) {
		middleware.NotFound(c, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
