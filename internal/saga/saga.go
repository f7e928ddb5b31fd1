package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/internal/billz"
	"github.com/orzulab/billz-worker/internal/store"
	"github.com/orzulab/billz-worker/internal/worker/domain"
)

// Commerce is the slice of the commerce client the saga needs.
type Commerce interface {
	CreateOrder(ctx context.Context) (*billz.OrderRef, error)
	CreateClient(ctx context.Context, phone, firstName, lastName string) (*billz.Customer, error)
	AddClient(ctx context.Context, customerID, orderID string) error
	AddItem(ctx context.Context, params billz.AddItemParams) error
	CreateDiscount(ctx context.Context, orderID string, value float64) error
	PostponeOrder(ctx context.Context, orderID, comment string) error
	DeleteOrder(ctx context.Context, orderID string) error
}

// OrderStore persists remote identifiers onto the local order.
type OrderStore interface {
	BillzID(ctx context.Context, orderID string) (string, error)
	SetBillzID(ctx context.Context, orderID, billzID string) error
	Delete(ctx context.Context, orderID string) error
}

// ClientStore reads the local client and persists its remote id checkpoint.
type ClientStore interface {
	Get(ctx context.Context, clientID string) (*store.Client, error)
	SetBillzID(ctx context.Context, clientID, billzID string) error
}

// Auditor records one entry per step boundary. Implemented by audit.Logger.
type Auditor interface {
	Success(ctx context.Context, entry audit.Entry)
	Failure(ctx context.Context, entry audit.Entry, err error)
}

// Result is returned when every step of the saga succeeded.
type Result struct {
	BillzOrderID  string
	BillzClientID string
	ItemsAdded    []string
}

// StepError marks a saga aborted at a named step. The failing step has
// already been audited; the dispatcher must not log it a second time.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga aborted at step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Orchestrator executes the ordered order-placement steps. Any step failure
// halts the run; the failing step's declared compensation, if any, runs
// best-effort before the error is returned.
type Orchestrator struct {
	commerce Commerce
	orders   OrderStore
	clients  ClientStore
	audit    Auditor
	logger   *slog.Logger
}

// NewOrchestrator creates a new saga Orchestrator
func NewOrchestrator(commerce Commerce, orders OrderStore, clients ClientStore, auditor Auditor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		commerce: commerce,
		orders:   orders,
		clients:  clients,
		audit:    auditor,
		logger:   logger,
	}
}

// run is the ephemeral state of one saga execution. It lives only for the
// duration of the run; discovered identifiers are persisted onto the order
// and client rows as side effects, never as run state.
type run struct {
	payload       domain.PlaceOrderPayload
	correlationID string
	billzOrderID  string
	billzClientID string
	itemsAdded    []string
}

// step declares one unit of the saga: how to execute it, which audit action
// it maps to, when it may be skipped, and what compensates it on failure.
// New steps declare their own compensation here instead of touching the loop.
type step struct {
	name       string
	action     audit.Action
	skip       func(r *run) bool
	execute    func(ctx context.Context, r *run) (map[string]any, error)
	compensate func(ctx context.Context, r *run)
}

func (o *Orchestrator) steps() []step {
	return []step{
		{
			name:    "create_order",
			action:  audit.ActionCreate,
			execute: o.createRemoteOrder,
		},
		{
			name:    "resolve_client",
			action:  audit.ActionCreate,
			execute: o.resolveClient,
		},
		{
			name:    "add_client",
			action:  audit.ActionUpdate,
			execute: o.attachClient,
		},
		{
			name:       "add_items",
			action:     audit.ActionCreate,
			execute:    o.addItems,
			compensate: o.deleteRemoteOrder,
		},
		{
			name:   "create_discount",
			action: audit.ActionCreate,
			skip: func(r *run) bool {
				return r.payload.DiscountAmount <= 0
			},
			execute: o.applyDiscount,
		},
		{
			name:    "postpone_order",
			action:  audit.ActionUpdate,
			execute: o.postponeOrder,
		},
	}
}

// PlaceOrder runs the saga for one order. It never retries a step: retrying
// the whole saga is the queue's redelivery mechanism. Every executed step
// emits exactly one audit record sharing the job's correlation id.
func (o *Orchestrator) PlaceOrder(ctx context.Context, payload domain.PlaceOrderPayload, correlationID string) (*Result, error) {
	r := &run{
		payload:       payload,
		correlationID: correlationID,
	}

	o.logger.Info("Order placement saga started",
		slog.String("order_id", payload.OrderID),
		slog.String("correlation_id", correlationID),
		slog.Int("product_lines", len(payload.Products)),
	)

	for _, st := range o.steps() {
		if st.skip != nil && st.skip(r) {
			o.logger.Debug("Saga step skipped",
				slog.String("step", st.name),
				slog.String("correlation_id", correlationID),
			)
			continue
		}

		description, err := st.execute(ctx, r)
		entry := o.entry(st, r, description)

		if err != nil {
			o.audit.Failure(ctx, entry, err)
			o.logger.Error("Saga step failed",
				slog.String("step", st.name),
				slog.String("order_id", payload.OrderID),
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)

			if st.compensate != nil {
				st.compensate(ctx, r)
			}

			return nil, &StepError{Step: st.name, Err: err}
		}

		o.audit.Success(ctx, entry)
	}

	o.logger.Info("Order placement saga completed",
		slog.String("order_id", payload.OrderID),
		slog.String("billz_order_id", r.billzOrderID),
		slog.String("correlation_id", correlationID),
		slog.Int("items_added", len(r.itemsAdded)),
	)

	return &Result{
		BillzOrderID:  r.billzOrderID,
		BillzClientID: r.billzClientID,
		ItemsAdded:    r.itemsAdded,
	}, nil
}

// entry builds the audit entry for one step boundary, carrying enough context
// to reconstruct a failure without re-running the saga.
func (o *Orchestrator) entry(st step, r *run, description map[string]any) audit.Entry {
	if description == nil {
		description = map[string]any{}
	}
	description["step"] = st.name
	if r.billzOrderID != "" {
		description["billz_order_id"] = r.billzOrderID
	}
	if r.billzClientID != "" {
		description["billz_client_id"] = r.billzClientID
	}

	return audit.Entry{
		Section:       audit.SectionBillz,
		Action:        st.action,
		OrderID:       r.payload.OrderID,
		Description:   description,
		CorrelationID: r.correlationID,
	}
}
