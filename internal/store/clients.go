package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Client is the local customer record the saga reads and checkpoints.
type Client struct {
	ID        string         `db:"client_id"`
	Phone     string         `db:"phone"`
	FirstName string         `db:"first_name"`
	LastName  sql.NullString `db:"last_name"`
	BillzID   sql.NullString `db:"billz_id"`
}

// RemoteID returns the persisted remote client id, or empty string when the
// client has not been created remotely yet.
func (c *Client) RemoteID() string {
	return c.BillzID.String
}

// Clients handles database operations on the clients table.
type Clients struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewClients creates a new Clients repository
func NewClients(db *sqlx.DB, logger *slog.Logger) *Clients {
	return &Clients{
		db:     db,
		logger: logger,
	}
}

// Get fetches a client by id.
func (c *Clients) Get(ctx context.Context, clientID string) (*Client, error) {
	query := `
		SELECT client_id, phone, first_name, last_name, billz_id
		FROM clients
		WHERE client_id = $1
	`

	var client Client
	err := c.db.GetContext(ctx, &client, query, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %s", ErrNotFound, clientID)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}

// SetBillzID persists the remote client id onto the client row. This is the
// idempotency checkpoint: once written, later sagas for the same client skip
// remote creation.
func (c *Clients) SetBillzID(ctx context.Context, clientID, billzID string) error {
	query := `
		UPDATE clients
		SET billz_id = $1,
		    updated_at = NOW()
		WHERE client_id = $2
	`

	result, err := c.db.ExecContext(ctx, query, billzID, clientID)
	if err != nil {
		return fmt.Errorf("failed to set client billz id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: client %s", ErrNotFound, clientID)
	}

	c.logger.Info("Client remote id persisted",
		slog.String("client_id", clientID),
		slog.String("billz_id", billzID),
	)

	return nil
}
