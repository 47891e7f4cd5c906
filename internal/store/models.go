package store

import (
	"fmt"
	"strings"
	"time"

	"templateflow/internal/workflow"
)

// Item is a work item persisted in SQLite.
type Item struct {
	ID               int64
	TemplateRef      string
	Title            string
	Creator          string
	Assignee         string
	Status           workflow.Status
	Price            int64
	ReworkCount      int
	Version          int64
	FirstCompletedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Snapshot returns the view of the item the workflow engine decides on.
func (i *Item) Snapshot() workflow.Item {
	return workflow.Item{
		ID:               i.ID,
		Status:           i.Status,
		Creator:          i.Creator,
		Assignee:         i.Assignee,
		Price:            i.Price,
		ReworkCount:      i.ReworkCount,
		FirstCompletedAt: i.FirstCompletedAt,
	}
}

// NewItem holds the caller-supplied fields of a new work item.
type NewItem struct {
	TemplateRef string
	Title       string
	Creator     string
	Price       int64
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	Statuses []workflow.Status
	Assignee string
	Creator  string
}

// Transition is one append-only status change entry.
type Transition struct {
	ID        int64
	ItemID    int64
	From      workflow.Status
	To        workflow.Status
	Actor     string
	ActorRole string
	CreatedAt time.Time
}

// BillableState is the payment lifecycle of a billable record.
type BillableState string

const (
	BillablePending  BillableState = "pending"
	BillableInvoiced BillableState = "invoiced"
	BillablePaid     BillableState = "paid"
)

var billableOrder = map[BillableState]int{
	BillablePending:  0,
	BillableInvoiced: 1,
	BillablePaid:     2,
}

// ParseBillableState converts user input into a BillableState.
func ParseBillableState(value string) (BillableState, error) {
	state := BillableState(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := billableOrder[state]; !ok {
		return "", fmt.Errorf("unknown billable state %q", value)
	}
	return state, nil
}

// BillableRecord tracks payment owed to the assignee for completed work.
type BillableRecord struct {
	ID          int64
	ItemID      int64
	Assignee    string
	Amount      int64
	State       BillableState
	CompletedAt time.Time
	VoidedAt    *time.Time
	UpdatedAt   time.Time
}

// Voided reports whether the record has been voided.
func (b *BillableRecord) Voided() bool {
	return b.VoidedAt != nil
}

// BillableFilter narrows ListBillable.
type BillableFilter struct {
	State         BillableState
	Assignee      string
	IncludeVoided bool
}

// Notification is a persisted notification for one recipient.
type Notification struct {
	ID        int64
	Recipient string
	Kind      string
	Title     string
	Message   string
	ItemID    int64
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Read reports whether the recipient has marked the notification read.
func (n *Notification) Read() bool {
	return n.ReadAt != nil
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// Stats summarizes store contents.
type Stats struct {
	Items           map[workflow.Status]int
	PendingBillable int
	PendingAmount   int64
	Notifications   int
	Unread          int
}
