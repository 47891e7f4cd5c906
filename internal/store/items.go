package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"templateflow/internal/workflow"
)

// CreateItem inserts a work item in the new status.
func (s *Store) CreateItem(ctx context.Context, in NewItem) (*Item, error) {
	in.TemplateRef = strings.TrimSpace(in.TemplateRef)
	in.Title = strings.TrimSpace(in.Title)
	in.Creator = strings.TrimSpace(in.Creator)
	if in.TemplateRef == "" {
		return nil, errors.New("template reference is required")
	}
	if in.Creator == "" {
		return nil, errors.New("creator is required")
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("price must be >= 0 (got %d)", in.Price)
	}
	if in.Title == "" {
		in.Title = in.TemplateRef
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (template_ref, title, creator, status, price, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.TemplateRef,
		in.Title,
		in.Creator,
		workflow.StatusNew,
		in.Price,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

// GetItem fetches an item by identifier. It returns nil, nil when missing.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching filter ordered by id.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.Assignee != "" {
		clauses = append(clauses, `assignee = ?`)
		args = append(args, filter.Assignee)
	}
	if filter.Creator != "" {
		clauses = append(clauses, `creator = ?`)
		args = append(args, filter.Creator)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Transitions returns the status log for an item, oldest first.
func (s *Store) Transitions(ctx context.Context, itemID int64) ([]Transition, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+transitionColumns+` FROM status_transitions WHERE item_id = ? ORDER BY id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// ReworkCountFromLog reconstructs the rework counter from the status log
// without trusting the stored counter.
func (s *Store) ReworkCountFromLog(ctx context.Context, itemID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM status_transitions WHERE item_id = ? AND from_status = ? AND to_status = ?`,
		itemID,
		workflow.StatusSubmitted,
		workflow.StatusNeedsFixes,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rework: %w", err)
	}
	return count, nil
}
