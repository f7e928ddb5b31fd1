package handler

import (
	"log/slog"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/shared/postgresql"
	"github.com/orzulab/billz-worker/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	AuditStore   *audit.Store
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// JobHandler handles job enqueue HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		rabbitClient: deps.RabbitClient,
	}
}

// LogHandler handles audit log HTTP requests
type LogHandler struct {
	logger *slog.Logger
	store  *audit.Store
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(deps *Dependencies) *LogHandler {
	return &LogHandler{
		logger: deps.Logger,
		store:  deps.AuditStore,
	}
}
