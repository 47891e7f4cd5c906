package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tx is a write transaction handed to InTx callbacks.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
	now time.Time
}

// Now is the timestamp every write in this transaction records.
func (t *Tx) Now() time.Time {
	return t.now
}

// Item loads an item inside the transaction.
func (t *Tx) Item(id int64) (*Item, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	return item, nil
}

// UpdateItem persists the mutable workflow fields of item if nobody changed
// the row since it was loaded. On success item.Version is advanced.
func (t *Tx) UpdateItem(item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE items
         SET status = ?, assignee = ?, rework_count = ?, first_completed_at = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		item.Status,
		nullableString(item.Assignee),
		item.ReworkCount,
		nullableTime(item.FirstCompletedAt),
		formatTime(t.now),
		item.ID,
		item.Version,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d version %d: %w", item.ID, item.Version, ErrConcurrentModification)
	}
	item.Version++
	item.UpdatedAt = t.now
	return nil
}

// AppendTransition records one entry in the status log.
func (t *Tx) AppendTransition(tr Transition) (Transition, error) {
	tr.CreatedAt = t.now
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO status_transitions (item_id, from_status, to_status, actor, actor_role, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ItemID,
		tr.From,
		tr.To,
		tr.Actor,
		nullableString(tr.ActorRole),
		formatTime(t.now),
	)
	if err != nil {
		return Transition{}, fmt.Errorf("append transition: %w", err)
	}
	if tr.ID, err = res.LastInsertId(); err != nil {
		return Transition{}, fmt.Errorf("last insert id: %w", err)
	}
	return tr, nil
}

// ActiveBillable returns the non-voided billable record for itemID, or nil.
func (t *Tx) ActiveBillable(itemID int64) (*BillableRecord, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+billableColumns+` FROM billable_records WHERE item_id = ? AND voided_at IS NULL`,
		itemID,
	)
	rec, err := scanBillable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load billable record: %w", err)
	}
	return rec, nil
}

// InsertBillable creates a pending billable record.
func (t *Tx) InsertBillable(itemID int64, assignee string, amount int64) (*BillableRecord, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO billable_records (item_id, assignee, amount, state, completed_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		itemID,
		assignee,
		amount,
		BillablePending,
		formatTime(t.now),
		formatTime(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert billable record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &BillableRecord{
		ID:          id,
		ItemID:      itemID,
		Assignee:    assignee,
		Amount:      amount,
		State:       BillablePending,
		CompletedAt: t.now,
		UpdatedAt:   t.now,
	}, nil
}

// InsertNotification persists an unread notification.
func (t *Tx) InsertNotification(n Notification) (*Notification, error) {
	n.CreatedAt = t.now
	n.ReadAt = nil
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO notifications (recipient, kind, title, message, item_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		n.Recipient,
		n.Kind,
		n.Title,
		n.Message,
		nullableID(n.ItemID),
		formatTime(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &n, nil
}
