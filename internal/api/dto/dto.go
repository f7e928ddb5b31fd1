package dto

import "encoding/json"

type EnqueueJobRequest struct {
	Kind          string          `json:"kind" binding:"required"`
	Payload       json.RawMessage `json:"payload" binding:"required"`
	CorrelationID string          `json:"correlation_id"`
}

type EnqueueJobResponse struct {
	Kind          string `json:"kind"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
	EnqueuedAt    string `json:"enqueued_at"`
}

type ListLogsRequest struct {
	Section  string `form:"section"`
	Action   string `form:"action"`
	OnlyFail bool   `form:"only_fail"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListLogsResponse struct {
	Logs       []LogDTO `json:"logs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type LogDTO struct {
	ID            int64          `json:"id"`
	Section       string         `json:"section"`
	Action        string         `json:"action"`
	OrderID       string         `json:"order_id,omitempty"`
	Description   map[string]any `json:"description,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     string         `json:"created_at"`
}
