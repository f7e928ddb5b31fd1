package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Orders handles database operations on the orders table.
type Orders struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewOrders creates a new Orders repository
func NewOrders(db *sqlx.DB, logger *slog.Logger) *Orders {
	return &Orders{
		db:     db,
		logger: logger,
	}
}

// BillzID returns the remote order id persisted for an order, or empty string
// when the order has no remote counterpart yet.
func (o *Orders) BillzID(ctx context.Context, orderID string) (string, error) {
	query := `SELECT billz_id FROM orders WHERE order_id = $1`

	var billzID sql.NullString
	err := o.db.QueryRowContext(ctx, query, orderID).Scan(&billzID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return "", fmt.Errorf("failed to get order billz id: %w", err)
	}

	return billzID.String, nil
}

// SetBillzID persists the remote order id onto the order row.
func (o *Orders) SetBillzID(ctx context.Context, orderID, billzID string) error {
	query := `
		UPDATE orders
		SET billz_id = $1,
		    updated_at = NOW()
		WHERE order_id = $2
	`

	result, err := o.db.ExecContext(ctx, query, billzID, orderID)
	if err != nil {
		return fmt.Errorf("failed to set order billz id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	o.logger.Info("Order remote id persisted",
		slog.String("order_id", orderID),
		slog.String("billz_id", billzID),
	)

	return nil
}

// Delete removes an order row. Used by the saga's compensation path after the
// remote order has been deleted.
func (o *Orders) Delete(ctx context.Context, orderID string) error {
	query := `DELETE FROM orders WHERE order_id = $1`

	if _, err := o.db.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	o.logger.Info("Order deleted",
		slog.String("order_id", orderID),
	)

	return nil
}
