package store

import (
	"context"
	"fmt"
	"time"
)

// ListNotifications returns a recipient's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipient string, filter NotificationFilter) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient = ?`
	args := []any{recipient}
	if filter.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts a recipient's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, recipient string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM notifications WHERE recipient = ? AND read_at IS NULL`,
		recipient,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead sets the read marker on one of recipient's notifications. It
// reports whether the marker changed; ErrNotFound is returned when the
// notification does not exist or belongs to someone else.
func (s *Store) MarkRead(ctx context.Context, recipient string, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET read_at = ? WHERE id = ? AND recipient = ? AND read_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id, recipient,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM notifications WHERE id = ? AND recipient = ?`, id, recipient,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return false, nil
}

// MarkAllRead marks every unread notification of recipient read.
func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET read_at = ? WHERE recipient = ? AND read_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), recipient,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}
