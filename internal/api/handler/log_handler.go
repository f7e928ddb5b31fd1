package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orzulab/billz-worker/internal/api/dto"
	"github.com/orzulab/billz-worker/internal/audit"
)

// ListLogs handles GET /api/v1/logs
// Lists audit records with optional filtering and cursor pagination
func (h *LogHandler) ListLogs(c *gin.Context) {
	var req dto.ListLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeLogCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	// Fetch one extra record to detect whether another page exists
	filter := audit.Filter{
		Section:  audit.Section(req.Section),
		Action:   audit.Action(req.Action),
		OnlyFail: req.OnlyFail,
		Limit:    req.PageSize + 1,
		Cursor:   cursor,
	}

	records, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list logs",
		})
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor, err = EncodeLogCursor(&audit.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListLogsResponse{
		Logs:       toLogDTOs(records),
		NextCursor: nextCursor,
	})
}

// LogsByCorrelation handles GET /api/v1/logs/correlation/:correlation_id
// Returns the full step trail of one job, oldest record first
func (h *LogHandler) LogsByCorrelation(c *gin.Context) {
	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "correlation_id is required",
		})
		return
	}

	records, err := h.store.ByCorrelationID(c.Request.Context(), correlationID)
	if err != nil {
		h.logger.Error("Failed to get logs by correlation id",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get logs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ListLogsResponse{
		Logs: toLogDTOs(records),
	})
}

// ErrorLogs handles GET /api/v1/logs/errors
// Returns the most recent failure records
func (h *LogHandler) ErrorLogs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	records, err := h.store.Errors(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get error logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get error logs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ListLogsResponse{
		Logs: toLogDTOs(records),
	})
}

func toLogDTOs(records []audit.Record) []dto.LogDTO {
	logs := make([]dto.LogDTO, len(records))
	for i, record := range records {
		logs[i] = dto.LogDTO{
			ID:            record.ID,
			Section:       string(record.Section),
			Action:        string(record.Action),
			OrderID:       record.OrderID,
			Description:   record.Description,
			CorrelationID: record.CorrelationID,
			Success:       record.Success,
			ErrorMessage:  record.ErrorMessage,
			CreatedAt:     record.CreatedAt.Format(time.RFC3339),
		}
	}
	return logs
}
