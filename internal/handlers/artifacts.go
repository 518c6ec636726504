package handlers

import (
	"errors"
	"net/http"

	"github.com/agentforge/api/internal/artifacts"
	"github.com/agentforge/api/internal/eventbus"
	"github.com/agentforge/api/internal/metrics"
	"github.com/agentforge/api/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArtifactsHandler serves stored generation artifacts
type ArtifactsHandler struct {
	store  *artifacts.Store
	bus    *eventbus.Bus
	logger *zap.Logger
}

// NewArtifactsHandler creates a new artifacts handler
func NewArtifactsHandler(store *artifacts.Store, bus *eventbus.Bus, logger *zap.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{store: store, bus: bus, logger: logger}
}

// Get handles GET /api/v1/artifacts/:id/:slot
func (h *ArtifactsHandler) Get(c *gin.Context) {
	requestID := c.Param("id")
	slot := artifacts.Slot(c.Param("slot"))

	art, err := h.store.Get(c.Request.Context(), requestID, slot)
	if err != nil {
		switch {
		case errors.Is(err, artifacts.ErrInvalidSlot):
			metrics.ArtifactOperationsTotal.WithLabelValues("get", "invalid").Inc()
			middleware.BadRequest(c, "invalid artifact slot: "+string(slot))
		case errors.Is(err, artifacts.ErrNotFound):
			metrics.ArtifactOperationsTotal.WithLabelValues("get", "not_found").Inc()
			middleware.NotFound(c, "artifact not found")
		default:
			metrics.ArtifactOperationsTotal.WithLabelValues("get", "error").Inc()
			h.logger.Error("artifact fetch failed",
				zap.String("request_id", requestID), zap.Error(err))
			middleware.InternalError(c, "could not fetch artifact")
		}
		return
	}

	metrics.ArtifactOperationsTotal.WithLabelValues("get", "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"request_id":   requestID,
		"slot":         art.Slot,
		"code_content": art.Content,
		"uri":          art.URI,
		"size":         art.Size,
		"last_modified": art.Modified,
	})
}

// List handles GET /api/v1/artifacts/:id
func (h *ArtifactsHandler) List(c *gin.Context) {
	requestID := c.Param("id")

	metas, err := h.store.List(c.Request.Context(), requestID)
	if err != nil {
		metrics.ArtifactOperationsTotal.WithLabelValues("list", "error").Inc()
		h.logger.Error("artifact listing failed",
			zap.String("request_id", requestID), zap.Error(err))
		middleware.InternalError(c, "could not list artifacts")
		return
	}
	if metas == nil {
		metas = []artifacts.Meta{}
	}

	metrics.ArtifactOperationsTotal.WithLabelValues("list", "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"request_id": requestID,
		"files":      metas,
		"count":      len(metas),
	})
}

// Delete handles DELETE /api/v1/artifacts/:id
func (h *ArtifactsHandler) Delete(c *gin.Context) {
	requestID := c.Param("id")
	userID, _ := middleware.GetUserID(c)

	result, err := h.store.Delete(c.Request.Context(), requestID)
	if err != nil {
		metrics.ArtifactOperationsTotal.WithLabelValues("delete", "error").Inc()
		h.logger.Error("artifact deletion failed",
			zap.String("request_id", requestID), zap.Error(err))
		middleware.InternalError(c, "could not delete artifacts")
		return
	}

	metrics.ArtifactOperationsTotal.WithLabelValues("delete", "success").Inc()
	h.bus.PublishArtifactsDeleted(requestID, userID)

	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"request_id":    requestID,
		"deleted_count": result.Deleted,
		"total_files":   result.Total,
		"errors":        result.Errors,
	})
}
