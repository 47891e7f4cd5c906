package store

import (
	"database/sql"
	"errors"
	"time"

	"templateflow/internal/workflow"
)

const itemColumns = "id, template_ref, title, creator, assignee, status, price, rework_count, version, first_completed_at, created_at, updated_at"

const transitionColumns = "id, item_id, from_status, to_status, actor, actor_role, created_at"

const billableColumns = "id, item_id, assignee, amount, state, completed_at, voided_at, updated_at"

const notificationColumns = "id, recipient, kind, title, message, item_id, created_at, read_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*Item, error) {
	var (
		item           Item
		assignee       sql.NullString
		statusStr      string
		firstCompleted sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := row.Scan(
		&item.ID,
		&item.TemplateRef,
		&item.Title,
		&item.Creator,
		&assignee,
		&statusStr,
		&item.Price,
		&item.ReworkCount,
		&item.Version,
		&firstCompleted,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Assignee = assignee.String
	item.Status = workflow.Status(statusStr)
	item.FirstCompletedAt = parseNullTime(firstCompleted)
	item.CreatedAt, _ = parseTimeString(createdRaw)
	item.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &item, nil
}

func scanTransition(row scanner) (Transition, error) {
	var (
		tr         Transition
		from, to   string
		role       sql.NullString
		createdRaw string
	)
	if err := row.Scan(&tr.ID, &tr.ItemID, &from, &to, &tr.Actor, &role, &createdRaw); err != nil {
		return Transition{}, err
	}
	tr.From = workflow.Status(from)
	tr.To = workflow.Status(to)
	tr.ActorRole = role.String
	tr.CreatedAt, _ = parseTimeString(createdRaw)
	return tr, nil
}

func scanBillable(row scanner) (*BillableRecord, error) {
	var (
		rec          BillableRecord
		state        string
		completedRaw string
		voided       sql.NullString
		updatedRaw   string
	)
	if err := row.Scan(&rec.ID, &rec.ItemID, &rec.Assignee, &rec.Amount, &state, &completedRaw, &voided, &updatedRaw); err != nil {
		return nil, err
	}
	rec.State = BillableState(state)
	rec.CompletedAt, _ = parseTimeString(completedRaw)
	rec.VoidedAt = parseNullTime(voided)
	rec.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &rec, nil
}

func scanNotification(row scanner) (*Notification, error) {
	var (
		n          Notification
		itemID     sql.NullInt64
		createdRaw string
		readRaw    sql.NullString
	)
	if err := row.Scan(&n.ID, &n.Recipient, &n.Kind, &n.Title, &n.Message, &itemID, &createdRaw, &readRaw); err != nil {
		return nil, err
	}
	n.ItemID = itemID.Int64
	n.CreatedAt, _ = parseTimeString(createdRaw)
	n.ReadAt = parseNullTime(readRaw)
	return &n, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
