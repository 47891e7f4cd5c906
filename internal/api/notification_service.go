package api

import (
	"context"

	"templateflow/internal/store"
)

// Inbox abstracts the notification inbox.
type Inbox interface {
	List(ctx context.Context, recipient string, filter store.NotificationFilter) ([]*store.Notification, error)
	UnreadCount(ctx context.Context, recipient string) (int, error)
	MarkRead(ctx context.Context, recipient string, id int64) (int, error)
	MarkAllRead(ctx context.Context, recipient string) (int, error)
}

// NotificationService exposes a recipient's inbox.
type NotificationService struct {
	inbox Inbox
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(inbox Inbox) *NotificationService {
	return &NotificationService{inbox: inbox}
}

// List returns the recipient's notifications and unread count.
func (s *NotificationService) List(ctx context.Context, recipient string, filter store.NotificationFilter) (NotificationListResponse, error) {
	rows, err := s.inbox.List(ctx, recipient, filter)
	if err != nil {
		return NotificationListResponse{}, err
	}
	unread, err := s.inbox.UnreadCount(ctx, recipient)
	if err != nil {
		return NotificationListResponse{}, err
	}
	return NotificationListResponse{Notifications: FromNotifications(rows), Unread: unread}, nil
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, recipient string, id int64) (UnreadResponse, error) {
	unread, err := s.inbox.MarkRead(ctx, recipient, id)
	if err != nil {
		return UnreadResponse{}, err
	}
	return UnreadResponse{Unread: unread}, nil
}

// MarkAllRead clears the recipient's unread badge.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient string) (UnreadResponse, error) {
	unread, err := s.inbox.MarkAllRead(ctx, recipient)
	if err != nil {
		return UnreadResponse{}, err
	}
	return UnreadResponse{Unread: unread}, nil
}
