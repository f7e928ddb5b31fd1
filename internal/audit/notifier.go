package audit

import (
	"context"
	"log/slog"

	"github.com/orzulab/billz-worker/internal/telegram"
)

// Sender delivers outbound notifications. Satisfied by *telegram.Bot.
type Sender interface {
	SendOrderNotification(ctx context.Context, n telegram.OrderNotification) error
	SendErrorNotification(ctx context.Context, n telegram.ErrorNotification) error
}

// Notifier consumes audit events and forwards them to the notification
// channel. Delivery is best-effort: failures are logged, never propagated,
// and never roll back the audit write that produced the event.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// NewNotifier creates a Notifier
func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger,
	}
}

// Run consumes events until the channel closes or the context is canceled.
func (n *Notifier) Run(ctx context.Context, events <-chan Event) {
	n.logger.Info("Notifier started")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Notifier stopped - context canceled")
			return

		case event, ok := <-events:
			if !ok {
				n.logger.Info("Notifier stopped - event channel closed")
				return
			}
			n.send(ctx, event)
		}
	}
}

func (n *Notifier) send(ctx context.Context, event Event) {
	var err error

	if event.Success {
		err = n.sender.SendOrderNotification(ctx, telegram.OrderNotification{
			OrderID:       event.Entry.OrderID,
			Status:        string(event.Entry.Section) + " " + string(event.Entry.Action) + " success",
			Description:   event.Entry.Description,
			CorrelationID: event.Entry.CorrelationID,
		})
	} else {
		err = n.sender.SendErrorNotification(ctx, telegram.ErrorNotification{
			Type:          string(event.Entry.Section) + " " + string(event.Entry.Action),
			Message:       event.ErrorMessage,
			OrderID:       event.Entry.OrderID,
			CorrelationID: event.Entry.CorrelationID,
		})
	}

	if err != nil {
		n.logger.Warn("Failed to send notification",
			slog.String("correlation_id", event.Entry.CorrelationID),
			slog.String("error", err.Error()),
		)
	}
}
