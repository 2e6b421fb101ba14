// internal/notify/notifier.go

// Package notify is the outbound notification boundary. Delivery is
// best-effort: a failed notification never rolls back a state transition.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Event names the occurrence being notified.
type Event string

const (
	// EventHoldReady tells a user the copy they reserved is waiting for them.
	EventHoldReady Event = "hold.ready"
	// EventFineIssued tells a user a fine was charged to their account.
	EventFineIssued Event = "fine.issued"
)

// Notifier delivers a notification to a user. Implementations must not
// block the caller on delivery problems.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event Event, payload map[string]any)
}

// LogNotifier writes notifications to a structured log. It stands in for a
// real delivery channel (mail, SMS) during development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, userID uuid.UUID, event Event, payload map[string]any) {
	n.logger.InfoContext(ctx, "notification",
		"user_id", userID, "event", string(event), "payload", payload)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, uuid.UUID, Event, map[string]any) {}
