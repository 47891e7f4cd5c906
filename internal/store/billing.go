package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetBillable fetches a billable record by id. It returns nil, nil when missing.
func (s *Store) GetBillable(ctx context.Context, id int64) (*BillableRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+billableColumns+` FROM billable_records WHERE id = ?`, id)
	rec, err := scanBillable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get billable record: %w", err)
	}
	return rec, nil
}

// ListBillable returns billable records matching filter ordered by id.
func (s *Store) ListBillable(ctx context.Context, filter BillableFilter) ([]*BillableRecord, error) {
	query := `SELECT ` + billableColumns + ` FROM billable_records`
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeVoided {
		clauses = append(clauses, `voided_at IS NULL`)
	}
	if filter.State != "" {
		clauses = append(clauses, `state = ?`)
		args = append(args, filter.State)
	}
	if filter.Assignee != "" {
		clauses = append(clauses, `assignee = ?`)
		args = append(args, filter.Assignee)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list billable records: %w", err)
	}
	defer rows.Close()

	var out []*BillableRecord
	for rows.Next() {
		rec, err := scanBillable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan billable record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AdvanceBillable moves a record one step along pending -> invoiced -> paid.
func (s *Store) AdvanceBillable(ctx context.Context, id int64, to BillableState) (*BillableRecord, error) {
	next, ok := billableOrder[to]
	if !ok {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidBillableState, to)
	}
	var out *BillableRecord
	err := s.InTx(ctx, func(tx *Tx) error {
		rec, err := tx.billable(id)
		if err != nil {
			return err
		}
		if rec.Voided() {
			return fmt.Errorf("%w: record %d is voided", ErrInvalidBillableState, id)
		}
		if billableOrder[rec.State]+1 != next {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidBillableState, rec.State, to)
		}
		if _, err := tx.tx.ExecContext(tx.ctx,
			`UPDATE billable_records SET state = ?, updated_at = ? WHERE id = ?`,
			to, formatTime(tx.now), id,
		); err != nil {
			return fmt.Errorf("advance billable record: %w", err)
		}
		rec.State = to
		rec.UpdatedAt = tx.now
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VoidBillable voids a pending record and clears the item's first completion,
// so the item's next entry into reviewed or published bills it again.
func (s *Store) VoidBillable(ctx context.Context, id int64) (*BillableRecord, error) {
	var out *BillableRecord
	err := s.InTx(ctx, func(tx *Tx) error {
		rec, err := tx.billable(id)
		if err != nil {
			return err
		}
		if rec.Voided() {
			out = rec
			return nil
		}
		if rec.State != BillablePending {
			return fmt.Errorf("%w: cannot void a %s record", ErrInvalidBillableState, rec.State)
		}
		if _, err := tx.tx.ExecContext(tx.ctx,
			`UPDATE billable_records SET voided_at = ?, updated_at = ? WHERE id = ?`,
			formatTime(tx.now), formatTime(tx.now), id,
		); err != nil {
			return fmt.Errorf("void billable record: %w", err)
		}
		if _, err := tx.tx.ExecContext(tx.ctx,
			`UPDATE items SET first_completed_at = NULL, version = version + 1, updated_at = ? WHERE id = ?`,
			formatTime(tx.now), rec.ItemID,
		); err != nil {
			return fmt.Errorf("reopen item billing: %w", err)
		}
		voided := tx.now
		rec.VoidedAt = &voided
		rec.UpdatedAt = tx.now
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tx) billable(id int64) (*BillableRecord, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+billableColumns+` FROM billable_records WHERE id = ?`, id)
	rec, err := scanBillable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("billable record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load billable record: %w", err)
	}
	return rec, nil
}
