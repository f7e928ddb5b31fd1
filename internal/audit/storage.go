package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the append-only audit store. The write path is used by the worker;
// the read paths serve operational inspection only.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new audit Store
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Append inserts one record and fills in its id and creation time.
func (s *Store) Append(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO audit_logs (
			section, action, order_id, description,
			correlation_id, success, error_message
		) VALUES (
			$1, $2, NULLIF($3, ''), $4,
			$5, $6, NULLIF($7, '')
		)
		RETURNING id, created_at
	`

	description, err := json.Marshal(record.Description)
	if err != nil {
		return fmt.Errorf("failed to marshal description: %w", err)
	}

	err = s.db.QueryRowContext(
		ctx,
		query,
		record.Section,
		record.Action,
		record.OrderID,
		description,
		record.CorrelationID,
		record.Success,
		record.ErrorMessage,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// Filter narrows List results. Zero values mean no filtering on that field.
type Filter struct {
	Section  Section
	Action   Action
	Limit    int
	Cursor   *Cursor
	OnlyFail bool
}

// Cursor marks the position after the last record of a previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

const selectColumns = `
	SELECT id, section, action, COALESCE(order_id, '') AS order_id, description,
	       correlation_id, success, COALESCE(error_message, '') AS error_message, created_at
	FROM audit_logs
`

// List returns records newest first, filtered by section/action/success.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := selectColumns + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Section != "" {
		query += fmt.Sprintf(" AND section = $%d", argIdx)
		args = append(args, filter.Section)
		argIdx++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}

	if filter.OnlyFail {
		query += " AND success = FALSE"
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	return s.queryRecords(ctx, query, args...)
}

// ByCorrelationID returns every record of one job, oldest first, so the step
// sequence reads top to bottom.
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) ([]Record, error) {
	query := selectColumns + ` WHERE correlation_id = $1 ORDER BY created_at ASC, id ASC`
	return s.queryRecords(ctx, query, correlationID)
}

// Errors returns the most recent failure records.
func (s *Store) Errors(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectColumns + ` WHERE success = FALSE ORDER BY created_at DESC, id DESC LIMIT $1`
	return s.queryRecords(ctx, query, limit)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record      Record
			description []byte
		)
		err := rows.Scan(
			&record.ID,
			&record.Section,
			&record.Action,
			&record.OrderID,
			&description,
			&record.CorrelationID,
			&record.Success,
			&record.ErrorMessage,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if len(description) > 0 {
			if err := json.Unmarshal(description, &record.Description); err != nil {
				s.logger.Warn("Malformed audit description, returning raw",
					slog.Int64("id", record.ID),
					slog.String("error", err.Error()),
				)
				record.Description = map[string]any{"raw": string(description)}
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return records, nil
}
