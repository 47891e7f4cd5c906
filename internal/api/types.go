package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a work item in a transport-friendly format.
type Item struct {
	ID               int64    `json:"id"`
	TemplateRef      string   `json:"templateRef"`
	Title            string   `json:"title"`
	Creator          string   `json:"creator"`
	Assignee         string   `json:"assignee,omitempty"`
	Status           string   `json:"status"`
	Price            int64    `json:"price"`
	ReworkCount      int      `json:"reworkCount"`
	Version          int64    `json:"version"`
	FirstCompletedAt string   `json:"firstCompletedAt,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
	AllowedTargets   []string `json:"allowedTargets,omitempty"`
}

// Transition is one entry of an item's status history.
type Transition struct {
	ID        int64  `json:"id"`
	ItemID    int64  `json:"itemId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Actor     string `json:"actor"`
	ActorRole string `json:"actorRole,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// Billable describes a billable record.
type Billable struct {
	ID          int64  `json:"id"`
	ItemID      int64  `json:"itemId"`
	Assignee    string `json:"assignee"`
	Amount      int64  `json:"amount"`
	State       string `json:"state"`
	Voided      bool   `json:"voided"`
	CompletedAt string `json:"completedAt"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Notification describes an inbox entry.
type Notification struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ItemID    int64  `json:"relatedItemId,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

// CreateItemRequest is the body of POST /api/items.
type CreateItemRequest struct {
	TemplateRef string `json:"templateRef"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
}

// TransitionRequest is the body of POST /api/items/{id}/transition.
type TransitionRequest struct {
	Status string `json:"status"`
}

// AssignRequest is the body of POST /api/items/{id}/assign.
type AssignRequest struct {
	Assignee string `json:"assignee"`
}

// AdvanceBillableRequest is the body of POST /api/billing/{id}/advance.
type AdvanceBillableRequest struct {
	State string `json:"state"`
}

// TransitionResponse answers a transition or assignment.
type TransitionResponse struct {
	NewStatus string    `json:"newStatus"`
	Item      Item      `json:"item"`
	Billable  *Billable `json:"billable,omitempty"`
	// Delivered counts live deliveries; informational only.
	Delivered int `json:"delivered"`
}

// ItemListResponse wraps a collection of items.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// ItemResponse wraps a single item.
type ItemResponse struct {
	Item Item `json:"item"`
}

// HistoryResponse wraps an item's transition log.
type HistoryResponse struct {
	ItemID      int64        `json:"itemId"`
	Transitions []Transition `json:"transitions"`
	// ReworkCount is reconstructed from the log.
	ReworkCount int `json:"reworkCount"`
}

// BillableListResponse wraps billable records.
type BillableListResponse struct {
	Records []Billable `json:"records"`
}

// BillableResponse wraps one billable record.
type BillableResponse struct {
	Record Billable `json:"record"`
}

// NotificationListResponse wraps a recipient's inbox.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}

// UnreadResponse reports a recipient's unread count.
type UnreadResponse struct {
	Unread int `json:"unread"`
}

// PresenceResponse reports an identity's live connections.
type PresenceResponse struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
	Devices  int    `json:"devices"`
}

// StatsResponse summarizes store contents.
type StatsResponse struct {
	Items           map[string]int `json:"items"`
	PendingBillable int            `json:"pendingBillable"`
	PendingAmount   int64          `json:"pendingAmount"`
	Notifications   int            `json:"notifications"`
	Unread          int            `json:"unread"`
	OnlineUsers     int            `json:"onlineUsers"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DatabasePath string        `json:"databasePath"`
	LockFilePath string        `json:"lockFilePath"`
	ReviewerRole string        `json:"reviewerRole"`
	Stats        StatsResponse `json:"stats"`
}
