package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/internal/billz"
	"github.com/orzulab/billz-worker/internal/saga"
	"github.com/orzulab/billz-worker/internal/worker/domain"
)

// processJob decodes the job payload, routes it to the handler for its kind
// and converts the outcome into the queue's ack/nack classification. Handler
// failures are audited with the kind-derived action and then returned so the
// queue's redelivery policy engages; the worker itself never retries.
func (w *Worker) processJob(ctx context.Context, msg *jobMessage) error {
	envelope := msg.envelope

	if w.maxAttempts > 0 && msg.attempts >= int64(w.maxAttempts) {
		// Advisory only: the queue owns retry policy, we just flag the job.
		w.logger.Warn("Job exceeded attempt limit, flagging for manual review",
			slog.String("kind", string(envelope.Kind)),
			slog.String("correlation_id", envelope.CorrelationID),
			slog.Int64("attempts", msg.attempts),
			slog.Int("max_attempts", w.maxAttempts),
		)
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	payload, err := domain.DecodePayload(envelope.Kind, envelope.Payload)
	if err == nil {
		err = w.handleJob(jobCtx, envelope, payload)
	}

	if err == nil {
		return nil
	}

	// Saga step failures are already audited at the failing step; auditing
	// them again here would duplicate the record for that step.
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		w.audit.Failure(ctx, audit.Entry{
			Section:       audit.SectionBillz,
			Action:        actionForKind(envelope.Kind),
			OrderID:       orderIDOf(payload),
			Description:   map[string]any{"job_kind": string(envelope.Kind)},
			CorrelationID: envelope.CorrelationID,
		}, err)
	}

	return classify(err)
}

// classify wraps transient failures as retryable for the nack decision.
// Unknown kinds, malformed payloads and data-integrity failures pass through
// unwrapped so they are not requeued.
func classify(err error) error {
	if errors.Is(err, domain.ErrUnknownKind) ||
		errors.Is(err, domain.ErrInvalidPayload) ||
		errors.Is(err, domain.ErrDataIntegrity) {
		return err
	}
	return domain.NewRetryableError(err)
}

// handleJob routes a decoded payload to its handler.
func (w *Worker) handleJob(ctx context.Context, envelope *domain.Envelope, payload any) error {
	correlationID := envelope.CorrelationID

	switch p := payload.(type) {
	case *domain.CreateClientPayload:
		return w.handleCreateClient(ctx, p, correlationID)
	case *domain.CreateOrderPayload:
		return w.handleCreateOrder(ctx, p, correlationID)
	case *domain.AddItemPayload:
		return w.handleAddItem(ctx, p, correlationID)
	case *domain.AddClientPayload:
		return w.handleAddClient(ctx, p, correlationID)
	case *domain.PostponeOrderPayload:
		return w.handlePostponeOrder(ctx, p, correlationID)
	case *domain.CancelPostponePayload:
		return w.handleCancelPostpone(ctx, p, correlationID)
	case *domain.CreateDiscountPayload:
		return w.handleCreateDiscount(ctx, p, correlationID)
	case *domain.MakePaymentPayload:
		return w.handleMakePayment(ctx, p, correlationID)
	case *domain.DeleteOrderPayload:
		return w.handleDeleteOrder(ctx, p, correlationID)
	case *domain.GetOrderPayload:
		return w.handleGetOrder(ctx, p, correlationID)
	case *domain.PlaceOrderPayload:
		_, err := w.saga.PlaceOrder(ctx, *p, correlationID)
		return err
	default:
		return domain.ErrUnknownKind
	}
}

func (w *Worker) handleCreateClient(ctx context.Context, p *domain.CreateClientPayload, correlationID string) error {
	customer, err := w.commerce.CreateClient(ctx, p.Phone, p.FirstName, p.LastName)
	if err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionCreate,
		Description: map[string]any{
			"operation":       "create_client",
			"phone":           p.Phone,
			"first_name":      p.FirstName,
			"last_name":       p.LastName,
			"billz_client_id": customer.ID,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleCreateOrder(ctx context.Context, p *domain.CreateOrderPayload, correlationID string) error {
	ref, err := w.commerce.CreateOrder(ctx)
	if err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionCreate,
		Description: map[string]any{
			"operation":      "create_order",
			"billz_order_id": ref.ID,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleAddItem(ctx context.Context, p *domain.AddItemPayload, correlationID string) error {
	err := w.commerce.AddItem(ctx, billz.AddItemParams{
		ProductID:  p.ProductID,
		Qty:        p.Qty,
		OrderID:    p.OrderID,
		EmployeeID: p.EmployeeID,
	})
	if err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionCreate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation":   "add_item",
			"product_id":  p.ProductID,
			"qty":         p.Qty,
			"employee_id": p.EmployeeID,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleAddClient(ctx context.Context, p *domain.AddClientPayload, correlationID string) error {
	if err := w.commerce.AddClient(ctx, p.CustomerID, p.OrderID); err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionUpdate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation":   "add_client_to_order",
			"customer_id": p.CustomerID,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handlePostponeOrder(ctx context.Context, p *domain.PostponeOrderPayload, correlationID string) error {
	if err := w.commerce.PostponeOrder(ctx, p.OrderID, p.Comment); err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionUpdate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation": "postpone_order",
			"comment":   p.Comment,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleCancelPostpone(ctx context.Context, p *domain.CancelPostponePayload, correlationID string) error {
	if err := w.commerce.CancelPostpone(ctx, p.OrderID); err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionUpdate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation": "cancel_postpone_order",
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleCreateDiscount(ctx context.Context, p *domain.CreateDiscountPayload, correlationID string) error {
	value := p.TotalPrice - p.Amount
	if err := w.commerce.CreateDiscount(ctx, p.OrderID, value); err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionCreate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation":      "create_discount",
			"amount":         p.Amount,
			"total_price":    p.TotalPrice,
			"discount_value": value,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleMakePayment(ctx context.Context, p *domain.MakePaymentPayload, correlationID string) error {
	order, err := w.commerce.MakePayment(ctx, p.OrderID, p.CardID, p.TotalPrice)
	if err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionCreate,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation":   "make_payment",
			"card_id":     p.CardID,
			"total_price": p.TotalPrice,
			"park_status": order.ParkStatus,
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleDeleteOrder(ctx context.Context, p *domain.DeleteOrderPayload, correlationID string) error {
	if err := w.commerce.DeleteOrder(ctx, p.OrderID); err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionDelete,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation": "delete_order",
		},
		CorrelationID: correlationID,
	})
	return nil
}

func (w *Worker) handleGetOrder(ctx context.Context, p *domain.GetOrderPayload, correlationID string) error {
	order, err := w.commerce.GetOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}

	w.audit.Success(ctx, audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionGet,
		OrderID: p.OrderID,
		Description: map[string]any{
			"operation":   "get_order",
			"park_status": order.ParkStatus,
			"total_price": order.TotalPrice,
		},
		CorrelationID: correlationID,
	})
	return nil
}

// actionForKind maps job kinds to audit actions for failure records.
func actionForKind(kind domain.Kind) audit.Action {
	switch kind {
	case domain.KindCreateClient, domain.KindCreateOrder, domain.KindAddItem,
		domain.KindCreateDiscount, domain.KindMakePayment, domain.KindPlaceOrder:
		return audit.ActionCreate
	case domain.KindAddClient, domain.KindPostponeOrder, domain.KindCancelPostpone:
		return audit.ActionUpdate
	case domain.KindDeleteOrder:
		return audit.ActionDelete
	case domain.KindGetOrder:
		return audit.ActionGet
	default:
		return audit.ActionCreate
	}
}

// orderIDOf extracts the order id from a decoded payload when it carries one.
func orderIDOf(payload any) string {
	switch p := payload.(type) {
	case *domain.AddItemPayload:
		return p.OrderID
	case *domain.AddClientPayload:
		return p.OrderID
	case *domain.PostponeOrderPayload:
		return p.OrderID
	case *domain.CancelPostponePayload:
		return p.OrderID
	case *domain.CreateDiscountPayload:
		return p.OrderID
	case *domain.MakePaymentPayload:
		return p.OrderID
	case *domain.DeleteOrderPayload:
		return p.OrderID
	case *domain.GetOrderPayload:
		return p.OrderID
	case *domain.PlaceOrderPayload:
		return p.OrderID
	default:
		return ""
	}
}
