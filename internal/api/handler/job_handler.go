package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/orzulab/billz-worker/internal/api/dto"
	"github.com/orzulab/billz-worker/internal/worker/domain"
)

// EnqueueJob handles POST /api/v1/jobs
// Validates the job kind and payload, then publishes it to the queue.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	kind := domain.Kind(req.Kind)
	if _, err := domain.DecodePayload(kind, req.Payload); err != nil {
		if errors.Is(err, domain.ErrUnknownKind) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown job kind: " + req.Kind,
			})
			return
		}
		h.logger.Error("Invalid job payload",
			slog.String("kind", req.Kind),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid payload for kind " + req.Kind,
		})
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	envelope := domain.Envelope{
		Kind:          kind,
		Payload:       req.Payload,
		CorrelationID: correlationID,
		EnqueuedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("Failed to encode job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode job",
		})
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish job",
			slog.String("kind", req.Kind),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	h.logger.Info("Job enqueued",
		slog.String("kind", req.Kind),
		slog.String("correlation_id", correlationID),
	)

	c.JSON(http.StatusAccepted, dto.EnqueueJobResponse{
		Kind:          req.Kind,
		CorrelationID: correlationID,
		Status:        "ENQUEUED",
		EnqueuedAt:    envelope.EnqueuedAt.Format(time.RFC3339),
	})
}
