package services

import (
	"context"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
)

// Notifier delivers a message to a chat user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n models.Notification) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, n models.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, userID int64, n models.Notification) error {
	return f(ctx, userID, n)
}

// bestEffort never fails: delivery errors are logged and dropped, so a
// committed transition is never undone by a courtesy message.
type bestEffort struct {
	next Notifier
	log  logging.Logger
}

func newBestEffort(next Notifier, log logging.Logger) *bestEffort {
	return &bestEffort{next: next, log: log.With("component", "notify")}
}

func (b *bestEffort) send(ctx context.Context, userID int64, n models.Notification) {
	if b.next == nil || userID == 0 {
		return
	}
	if err := b.next.Notify(ctx, userID, n); err != nil {
		b.log.Warn(ctx, "notification failed", "user_id", userID, "error", err)
	}
}
