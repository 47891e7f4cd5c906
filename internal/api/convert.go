package api

import (
	"time"

	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromItem converts a store item into its DTO.
func FromItem(item *store.Item) Item {
	if item == nil {
		return Item{}
	}
	return Item{
		ID:               item.ID,
		TemplateRef:      item.TemplateRef,
		Title:            item.Title,
		Creator:          item.Creator,
		Assignee:         item.Assignee,
		Status:           string(item.Status),
		Price:            item.Price,
		ReworkCount:      item.ReworkCount,
		Version:          item.Version,
		FirstCompletedAt: formatOptionalTime(item.FirstCompletedAt),
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.UpdatedAt),
	}
}

// FromItems converts a slice of store items.
func FromItems(items []*store.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromItem(item))
	}
	return out
}

// FromTransitions converts a transition log.
func FromTransitions(log []store.Transition) []Transition {
	out := make([]Transition, 0, len(log))
	for _, tr := range log {
		out = append(out, Transition{
			ID:        tr.ID,
			ItemID:    tr.ItemID,
			From:      string(tr.From),
			To:        string(tr.To),
			Actor:     tr.Actor,
			ActorRole: tr.ActorRole,
			CreatedAt: formatTime(tr.CreatedAt),
		})
	}
	return out
}

// FromBillable converts a billable record.
func FromBillable(rec *store.BillableRecord) Billable {
	if rec == nil {
		return Billable{}
	}
	return Billable{
		ID:          rec.ID,
		ItemID:      rec.ItemID,
		Assignee:    rec.Assignee,
		Amount:      rec.Amount,
		State:       string(rec.State),
		Voided:      rec.Voided(),
		CompletedAt: formatTime(rec.CompletedAt),
		UpdatedAt:   formatTime(rec.UpdatedAt),
	}
}

// FromBillables converts billable records.
func FromBillables(recs []*store.BillableRecord) []Billable {
	out := make([]Billable, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, FromBillable(rec))
	}
	return out
}

// FromNotifications converts inbox rows.
func FromNotifications(rows []*store.Notification) []Notification {
	out := make([]Notification, 0, len(rows))
	for _, n := range rows {
		if n == nil {
			continue
		}
		out = append(out, Notification{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Message:   n.Message,
			ItemID:    n.ItemID,
			Read:      n.Read(),
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	return out
}

// FromStats converts store statistics. Every status is present in the map.
func FromStats(stats store.Stats, online int) StatsResponse {
	counts := make(map[string]int, len(workflow.AllStatuses()))
	for _, status := range workflow.AllStatuses() {
		counts[string(status)] = stats.Items[status]
	}
	return StatsResponse{
		Items:           counts,
		PendingBillable: stats.PendingBillable,
		PendingAmount:   stats.PendingAmount,
		Notifications:   stats.Notifications,
		Unread:          stats.Unread,
		OnlineUsers:     online,
	}
}

func statusStrings(statuses []workflow.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
