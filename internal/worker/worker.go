package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/internal/billz"
	"github.com/orzulab/billz-worker/internal/saga"
	"github.com/orzulab/billz-worker/internal/worker/domain"
	"github.com/orzulab/billz-worker/shared/rabbitmq"
)

// Commerce is the slice of the commerce client the simple job handlers call.
type Commerce interface {
	CreateClient(ctx context.Context, phone, firstName, lastName string) (*billz.Customer, error)
	CreateOrder(ctx context.Context) (*billz.OrderRef, error)
	AddItem(ctx context.Context, params billz.AddItemParams) error
	AddClient(ctx context.Context, customerID, orderID string) error
	PostponeOrder(ctx context.Context, orderID, comment string) error
	CancelPostpone(ctx context.Context, orderID string) error
	CreateDiscount(ctx context.Context, orderID string, value float64) error
	MakePayment(ctx context.Context, orderID, cardID string, amount float64) (*billz.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*billz.Order, error)
}

// OrderPlacer runs the order-placement saga. Implemented by saga.Orchestrator.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, payload domain.PlaceOrderPayload, correlationID string) (*saga.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	RabbitClient *rabbitmq.Client
	Audit        *audit.Logger
	Commerce     Commerce
	Saga         OrderPlacer
	Concurrency  int
	Prefetch     int
	MaxAttempts  int
	JobTimeout   time.Duration
	QueueName    string
}

// Worker consumes tagged job messages from the queue, dispatches them to the
// matching handler with bounded concurrency, and classifies outcomes for the
// queue's retry policy. It performs no retry loop of its own.
type Worker struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
	audit        *audit.Logger
	commerce     Commerce
	saga         OrderPlacer
	concurrency  int
	prefetch     int
	maxAttempts  int
	jobTimeout   time.Duration
	queueName    string
	workerID     string
	jobsChan     chan *jobMessage
	wg           sync.WaitGroup
	stopChan     chan struct{}
}

// jobMessage is a decoded delivery handed from the dispatcher to the pool.
type jobMessage struct {
	envelope    *domain.Envelope
	deliveryTag uint64
	attempts    int64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:       cfg.Logger,
		rabbitClient: cfg.RabbitClient,
		audit:        cfg.Audit,
		commerce:     cfg.Commerce,
		saga:         cfg.Saga,
		concurrency:  concurrency,
		prefetch:     prefetch,
		maxAttempts:  cfg.MaxAttempts,
		jobTimeout:   cfg.JobTimeout,
		queueName:    cfg.QueueName,
		workerID:     fmt.Sprintf("billz-worker-%s", uuid.New().String()[:8]),
		jobsChan:     make(chan *jobMessage),
		stopChan:     make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until the context is
// canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
