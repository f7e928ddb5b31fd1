package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orzulab/billz-worker/internal/billz"
)

const integrationTypeBillz = "billz"

// Integrations persists the commerce integration credential. Implements
// billz.CredentialStore.
type Integrations struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewIntegrations creates a new Integrations repository
func NewIntegrations(db *sqlx.DB, logger *slog.Logger) *Integrations {
	return &Integrations{
		db:     db,
		logger: logger,
	}
}

// Credential loads the active billz integration row.
func (i *Integrations) Credential(ctx context.Context) (*billz.Credential, error) {
	query := `
		SELECT secret_token, access_token, refresh_token, expires_at, is_active
		FROM integrations
		WHERE type = $1
	`

	var row struct {
		SecretToken  string         `db:"secret_token"`
		AccessToken  sql.NullString `db:"access_token"`
		RefreshToken sql.NullString `db:"refresh_token"`
		ExpiresAt    sql.NullTime   `db:"expires_at"`
		IsActive     bool           `db:"is_active"`
	}

	err := i.db.GetContext(ctx, &row, query, integrationTypeBillz)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: billz integration", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return &billz.Credential{
		SecretToken:  row.SecretToken,
		AccessToken:  row.AccessToken.String,
		RefreshToken: row.RefreshToken.String,
		ExpiresAt:    row.ExpiresAt.Time,
		Active:       row.IsActive,
	}, nil
}

// SaveTokens stores freshly issued tokens and their expiry.
func (i *Integrations) SaveTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE integrations
		SET access_token = $1,
		    refresh_token = NULLIF($2, ''),
		    expires_at = $3,
		    updated_at = NOW()
		WHERE type = $4
	`

	result, err := i.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, integrationTypeBillz)
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: billz integration", ErrNotFound)
	}

	i.logger.Info("Integration tokens updated",
		slog.Time("expires_at", expiresAt),
	)

	return nil
}
