package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentforge/api/internal/database"
	"github.com/agentforge/api/internal/generation"
	"github.com/agentforge/api/internal/middleware"
	"github.com/agentforge/api/internal/models"
	"github.com/agentforge/api/internal/remote"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// finalSentinel marks the terminal SSE frame for clients. It exists only
// at this transport boundary; internal frames are typed.
const finalSentinel = "[FINAL]"

// GenerateHandler handles code generation endpoints
type GenerateHandler struct {
	service *generation.Service
	db      *database.Postgres
	breaker *middleware.CircuitBreaker
	logger  *zap.Logger
}

// NewGenerateHandler creates a new generation handler
func NewGenerateHandler(service *generation.Service, db *database.Postgres, breaker *middleware.CircuitBreaker, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{service: service, db: db, breaker: breaker, logger: logger}
}

// Generate handles POST /api/v1/code/generate. A config with stream=true
// switches the response to server-sent events.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var config models.VisualConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		middleware.BadRequest(c, "invalid configuration: "+err.Error())
		return
	}
	if len(config.Agents) == 0 {
		middleware.BadRequest(c, "configuration must contain at least one agent")
		return
	}

	userID, _ := middleware.GetUserID(c)
	userEmail, _ := middleware.GetUserEmail(c)
	req := generation.Request{
		Config:    &config,
		UserID:    userID,
		UserEmail: userEmail,
	}

	if config.Stream {
		h.generateStream(c, req)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		h.breaker.RecordFailure()
		h.logger.Error("generation failed", zap.Error(err))
		middleware.RespondErrorWithDetails(c, http.StatusBadGateway,
			middleware.ErrCodeGenerationFailed, "code generation failed", err.Error())
		return
	}
	h.breaker.RecordSuccess()

	c.JSON(http.StatusOK, result)
}

// generateStream re-frames the generation stream as SSE. Data payloads
// cannot carry raw newlines, so chunks are escaped at this boundary; the
// final frame is prefixed with the sentinel clients key on.
func (h *GenerateHandler) generateStream(c *gin.Context, req generation.Request) {
	requestID, frames, err := h.service.GenerateStream(c.Request.Context(), req)
	if err != nil {
		h.breaker.RecordFailure()
		h.logger.Error("streaming generation failed",
			zap.String("request_id", requestID), zap.Error(err))
		middleware.RespondErrorWithDetails(c, http.StatusBadGateway,
			middleware.ErrCodeGenerationFailed, "code generation failed", err.Error())
		return
	}
	h.breaker.RecordSuccess()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for frame := range frames {
		switch frame.Type {
		case remote.FrameText:
			escaped := strings.NewReplacer("\n", `\n`, "\r", `\r`).Replace(frame.Text)
			c.Writer.WriteString("data: " + escaped + "\n\n")
		case remote.FrameBlank:
			c.Writer.WriteString("\n")
		case remote.FrameFinal:
			payload, err := json.Marshal(frame.Final)
			if err != nil {
				h.logger.Error("could not encode final frame",
					zap.String("request_id", requestID), zap.Error(err))
				continue
			}
			c.Writer.WriteString("data: " + finalSentinel + string(payload) + "\n\n")
		}
		c.Writer.Flush()
	}
}

// History handles GET /api/v1/code/history
func (h *GenerateHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []database.GenerationLog{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.db.RecentGenerationLogs(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("could not load generation history", zap.Error(err))
		middleware.InternalError(c, "could not load generation history")
		return
	}
	if logs == nil {
		logs = []database.GenerationLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
