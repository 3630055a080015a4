// Package notify defines the outbound notification contract. Delivery
// (SMS, email, push) is owned by the surrounding platform; the billing core
// only dispatches best-effort messages and never fails an operation on a
// delivery error.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher sends a message to a set of users.
type Dispatcher interface {
	Notify(ctx context.Context, title, message string, userIDs []int64) error
}

// LogDispatcher writes notifications to the structured log. Stands in for a
// real delivery channel in development and tests.
type LogDispatcher struct {
	Logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{Logger: logger}
}

// Notify implements Dispatcher.
func (d *LogDispatcher) Notify(ctx context.Context, title, message string, userIDs []int64) error {
	d.Logger.InfoContext(ctx, "notification dispatched",
		"title", title,
		"message", message,
		"user_ids", userIDs,
	)
	return nil
}

// BestEffort invokes the dispatcher and logs a failure instead of returning
// it. Used after financial outcomes are already durable.
func BestEffort(ctx context.Context, d Dispatcher, logger *slog.Logger, title, message string, userIDs []int64) {
	if err := d.Notify(ctx, title, message, userIDs); err != nil {
		logger.ErrorContext(ctx, "notification delivery failed",
			"title", title,
			"user_ids", userIDs,
			"error", err,
		)
	}
}
