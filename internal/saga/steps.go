package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orzulab/billz-worker/internal/audit"
	"github.com/orzulab/billz-worker/internal/billz"
	"github.com/orzulab/billz-worker/internal/store"
	"github.com/orzulab/billz-worker/internal/worker/domain"
)

// createRemoteOrder opens the remote order and persists its id onto the local
// order immediately. A previously persisted id is reused so a redelivered job
// does not create a second remote order.
func (o *Orchestrator) createRemoteOrder(ctx context.Context, r *run) (map[string]any, error) {
	description := map[string]any{"operation": "create_order"}

	existing, err := o.orders.BillzID(ctx, r.payload.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return description, fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err)
		}
		return description, err
	}

	if existing != "" {
		r.billzOrderID = existing
		description["reused"] = true
		o.logger.Info("Reusing persisted remote order id",
			slog.String("order_id", r.payload.OrderID),
			slog.String("billz_order_id", existing),
		)
		return description, nil
	}

	ref, err := o.commerce.CreateOrder(ctx)
	if err != nil {
		return description, err
	}
	r.billzOrderID = ref.ID

	if err := o.orders.SetBillzID(ctx, r.payload.OrderID, ref.ID); err != nil {
		return description, err
	}

	return description, nil
}

// resolveClient looks up the local client and ensures it exists remotely.
// The persisted remote id is the idempotency checkpoint: once written, later
// sagas for the same client skip remote creation.
func (o *Orchestrator) resolveClient(ctx context.Context, r *run) (map[string]any, error) {
	description := map[string]any{
		"operation": "resolve_client",
		"client_id": r.payload.ClientID,
	}

	client, err := o.clients.Get(ctx, r.payload.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return description, fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err)
		}
		return description, err
	}

	if remoteID := client.RemoteID(); remoteID != "" {
		r.billzClientID = remoteID
		description["reused"] = true
		return description, nil
	}

	customer, err := o.commerce.CreateClient(ctx, client.Phone, client.FirstName, client.LastName.String)
	if err != nil {
		return description, err
	}

	if err := o.clients.SetBillzID(ctx, client.ID, customer.ID); err != nil {
		return description, err
	}

	r.billzClientID = customer.ID
	return description, nil
}

// attachClient adds the remote customer to the remote order.
func (o *Orchestrator) attachClient(ctx context.Context, r *run) (map[string]any, error) {
	description := map[string]any{"operation": "add_client_to_order"}

	if err := o.commerce.AddClient(ctx, r.billzClientID, r.billzOrderID); err != nil {
		return description, err
	}

	return description, nil
}

// addItems adds every product line carrying a remote reference. Lines without
// one are skipped: partially-resolved catalog data is tolerated, not fatal.
func (o *Orchestrator) addItems(ctx context.Context, r *run) (map[string]any, error) {
	description := map[string]any{"operation": "add_items"}

	skipped := 0
	for _, line := range r.payload.Products {
		if line.BillzProductID == "" {
			skipped++
			continue
		}

		params := billz.AddItemParams{
			ProductID:  line.BillzProductID,
			Qty:        line.Qty,
			OrderID:    r.billzOrderID,
			EmployeeID: r.payload.EmployeeID,
		}

		if err := o.commerce.AddItem(ctx, params); err != nil {
			description["failed_product_id"] = line.BillzProductID
			description["items_added"] = append([]string{}, r.itemsAdded...)
			return description, err
		}

		r.itemsAdded = append(r.itemsAdded, line.BillzProductID)
	}

	description["items_added"] = append([]string{}, r.itemsAdded...)
	description["lines_skipped"] = skipped
	return description, nil
}

// applyDiscount sends the manual discount. The remote value is the gap
// between the subtotal and the net amount the customer actually pays.
func (o *Orchestrator) applyDiscount(ctx context.Context, r *run) (map[string]any, error) {
	value := r.payload.SubTotalPrice - r.payload.TotalPrice
	description := map[string]any{
		"operation":      "create_discount",
		"discount_value": value,
	}

	if err := o.commerce.CreateDiscount(ctx, r.billzOrderID, value); err != nil {
		return description, err
	}

	return description, nil
}

// postponeOrder parks the remote order with a comment naming the local order
// and its region.
func (o *Orchestrator) postponeOrder(ctx context.Context, r *run) (map[string]any, error) {
	comment := fmt.Sprintf("Order %s (%s)", r.payload.OrderID, r.payload.Region)
	description := map[string]any{
		"operation": "postpone_order",
		"comment":   comment,
	}

	if err := o.commerce.PostponeOrder(ctx, r.billzOrderID, comment); err != nil {
		return description, err
	}

	return description, nil
}

// deleteRemoteOrder is the compensation for a rejected item add: the
// just-created remote order is deleted so it does not hold stock. The delete
// is best-effort; its failure is audited but never masks the original error.
// Items already added are not rolled back individually.
func (o *Orchestrator) deleteRemoteOrder(ctx context.Context, r *run) {
	entry := audit.Entry{
		Section: audit.SectionBillz,
		Action:  audit.ActionDelete,
		OrderID: r.payload.OrderID,
		Description: map[string]any{
			"step":            "delete_order",
			"operation":       "delete_order",
			"compensates":     "add_items",
			"billz_order_id":  r.billzOrderID,
			"billz_client_id": r.billzClientID,
		},
		CorrelationID: r.correlationID,
	}

	if err := o.commerce.DeleteOrder(ctx, r.billzOrderID); err != nil {
		o.audit.Failure(ctx, entry, err)
		o.logger.Error("Compensating remote order delete failed",
			slog.String("order_id", r.payload.OrderID),
			slog.String("billz_order_id", r.billzOrderID),
			slog.String("error", err.Error()),
		)
		return
	}

	o.audit.Success(ctx, entry)

	if err := o.orders.Delete(ctx, r.payload.OrderID); err != nil {
		o.logger.Warn("Failed to delete local order after compensation",
			slog.String("order_id", r.payload.OrderID),
			slog.String("error", err.Error()),
		)
	}
}
