package store

import (
	"context"
	"fmt"

	"templateflow/internal/workflow"
)

// Stats returns aggregated counts for the status endpoint and CLI.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Items: make(map[workflow.Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan item stats: %w", err)
		}
		stats.Items[workflow.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(amount), 0) FROM billable_records WHERE voided_at IS NULL AND state = ?`,
		BillablePending,
	).Scan(&stats.PendingBillable, &stats.PendingAmount); err != nil {
		return Stats{}, fmt.Errorf("billing stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0) FROM notifications`,
	).Scan(&stats.Notifications, &stats.Unread); err != nil {
		return Stats{}, fmt.Errorf("notification stats: %w", err)
	}
	return stats, nil
}
