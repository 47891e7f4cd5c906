package notifications

import (
	"context"
	"log/slog"

	"templateflow/internal/logging"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
)

// Store is the persistence surface the inbox needs.
type Store interface {
	ListNotifications(ctx context.Context, recipient string, filter store.NotificationFilter) ([]*store.Notification, error)
	UnreadCount(ctx context.Context, recipient string) (int, error)
	MarkRead(ctx context.Context, recipient string, id int64) (bool, error)
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
}

// Publisher delivers realtime events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) realtime.Report
}

// Inbox serves a recipient's notifications and keeps their devices' unread
// badge in sync.
type Inbox struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewInbox builds an inbox. A nil publisher disables live count updates.
func NewInbox(st Store, publisher Publisher, logger *slog.Logger) *Inbox {
	return &Inbox{
		store:     st,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "inbox"),
	}
}

// List returns recipient's notifications, newest first.
func (i *Inbox) List(ctx context.Context, recipient string, filter store.NotificationFilter) ([]*store.Notification, error) {
	return i.store.ListNotifications(ctx, recipient, filter)
}

// UnreadCount recomputes recipient's unread count from persisted rows.
func (i *Inbox) UnreadCount(ctx context.Context, recipient string) (int, error) {
	return i.store.UnreadCount(ctx, recipient)
}

// MarkRead marks one notification read and, when the marker changed,
// publishes the new unread count.
func (i *Inbox) MarkRead(ctx context.Context, recipient string, id int64) (int, error) {
	changed, err := i.store.MarkRead(ctx, recipient, id)
	if err != nil {
		return 0, err
	}
	count, err := i.store.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if changed {
		i.publishCount(ctx, recipient, count)
	}
	return count, nil
}

// MarkAllRead clears recipient's unread notifications and publishes the new
// count.
func (i *Inbox) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	marked, err := i.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, err
	}
	count, err := i.store.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		i.publishCount(ctx, recipient, count)
	}
	return count, nil
}

// PushCount recomputes and publishes recipient's unread count. Errors are
// logged; live delivery never fails the caller.
func (i *Inbox) PushCount(ctx context.Context, recipient string) {
	count, err := i.store.UnreadCount(ctx, recipient)
	if err != nil {
		logging.WarnWithContext(i.logger, "unread count unavailable", "inbox_count_failed",
			logging.Error(err),
			logging.String(logging.FieldIdentity, recipient),
			logging.String(logging.FieldImpact, "badge stays stale until the next update"),
		)
		return
	}
	i.publishCount(ctx, recipient, count)
}

func (i *Inbox) publishCount(ctx context.Context, recipient string, count int) {
	if i.publisher == nil {
		return
	}
	i.publisher.Publish(ctx, realtime.Event{
		Audience: realtime.IdentityGroup(recipient),
		Type:     realtime.EventNotificationCount,
		Data:     realtime.CountPayload{Count: count},
	})
}
