package audit

import (
	"context"
	"log/slog"
)

// AppendStore is the write half of the audit store.
type AppendStore interface {
	Append(ctx context.Context, record *Record) error
}

// Event is emitted after a successful audit write for actions that warrant an
// outbound notification. It is consumed by an independent notifier so
// notification latency never blocks audit durability.
type Event struct {
	Entry        Entry
	Success      bool
	ErrorMessage string
}

// Logger appends audit records. Write failures are logged and swallowed; they
// never propagate into the caller's control flow.
type Logger struct {
	store  AppendStore
	logger *slog.Logger
	events chan Event
	notify map[Action]bool
}

// NewLogger creates an audit Logger. The event channel is buffered; if the
// notifier falls behind, events are dropped rather than blocking the saga.
func NewLogger(store AppendStore, logger *slog.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger,
		events: make(chan Event, 64),
		notify: map[Action]bool{
			ActionCreate: true,
			ActionUpdate: true,
			ActionDelete: true,
		},
	}
}

// Events exposes the notification stream consumed by the notifier task.
func (l *Logger) Events() <-chan Event {
	return l.events
}

// Success appends a success record for one observable step.
func (l *Logger) Success(ctx context.Context, entry Entry) {
	record := &Record{
		Section:       entry.Section,
		Action:        entry.Action,
		OrderID:       entry.OrderID,
		Description:   entry.Description,
		CorrelationID: entry.CorrelationID,
		Success:       true,
	}

	if err := l.store.Append(ctx, record); err != nil {
		l.logger.Error("Failed to append audit record",
			slog.String("section", string(entry.Section)),
			slog.String("action", string(entry.Action)),
			slog.String("correlation_id", entry.CorrelationID),
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.Info("Audit success logged",
		slog.String("section", string(entry.Section)),
		slog.String("action", string(entry.Action)),
		slog.String("correlation_id", entry.CorrelationID),
	)

	if l.notify[entry.Action] {
		l.emit(Event{Entry: entry, Success: true})
	}
}

// Failure appends a failure record carrying the error message verbatim.
func (l *Logger) Failure(ctx context.Context, entry Entry, opErr error) {
	record := &Record{
		Section:       entry.Section,
		Action:        entry.Action,
		OrderID:       entry.OrderID,
		Description:   entry.Description,
		CorrelationID: entry.CorrelationID,
		Success:       false,
		ErrorMessage:  opErr.Error(),
	}

	if err := l.store.Append(ctx, record); err != nil {
		l.logger.Error("Failed to append audit record",
			slog.String("section", string(entry.Section)),
			slog.String("action", string(entry.Action)),
			slog.String("correlation_id", entry.CorrelationID),
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.Warn("Audit failure logged",
		slog.String("section", string(entry.Section)),
		slog.String("action", string(entry.Action)),
		slog.String("correlation_id", entry.CorrelationID),
		slog.String("error_message", opErr.Error()),
	)

	l.emit(Event{Entry: entry, Success: false, ErrorMessage: opErr.Error()})
}

func (l *Logger) emit(event Event) {
	select {
	case l.events <- event:
	default:
		l.logger.Warn("Notification event dropped, channel full",
			slog.String("correlation_id", event.Entry.CorrelationID),
		)
	}
}
