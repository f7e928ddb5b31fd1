package audit

import "time"

// Section is the application area a record belongs to.
type Section string

const (
	SectionBillz  Section = "billz"
	SectionOrders Section = "orders"
	SectionErrors Section = "errors"
)

// Action classifies what a record describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionGet    Action = "get"
)

// Record is one append-only audit row. Records are never mutated or deleted;
// all records sharing a correlation id, ordered by creation time, reconstruct
// the step sequence of one job.
type Record struct {
	ID            int64          `db:"id"`
	Section       Section        `db:"section"`
	Action        Action         `db:"action"`
	OrderID       string         `db:"order_id"`
	Description   map[string]any `db:"-"`
	CorrelationID string         `db:"correlation_id"`
	Success       bool           `db:"success"`
	ErrorMessage  string         `db:"error_message"`
	CreatedAt     time.Time      `db:"created_at"`
}

// Entry is what callers supply when logging; the logger fills in success and
// error fields.
type Entry struct {
	Section       Section
	Action        Action
	OrderID       string
	Description   map[string]any
	CorrelationID string
}
