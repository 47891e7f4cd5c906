package realtime

import (
	"encoding/json"
	"time"
)

// Event names sent to clients.
const (
	EventNotificationNew   = "notification:new"
	EventNotificationCount = "notification:count"
	EventItemStatus        = "item:status"
	EventPong              = "pong"
	EventError             = "error"
)

// Event is a domain event addressed to one audience.
type Event struct {
	Audience GroupKey
	Type     string
	Data     any
	At       time.Time
}

// Envelope is the wire shape of every outbound frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	TS    string `json:"ts"`
}

// NotificationPayload is the data of notification:new.
type NotificationPayload struct {
	ID            int64  `json:"id,omitempty"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	RelatedItemID int64  `json:"relatedItemId,omitempty"`
	Resubmission  bool   `json:"resubmission,omitempty"`
}

// CountPayload is the data of notification:count.
type CountPayload struct {
	Count int `json:"count"`
}

// StatusPayload is the data of item:status.
type StatusPayload struct {
	ItemID       int64  `json:"itemId"`
	From         string `json:"from"`
	To           string `json:"to"`
	Actor        string `json:"actor"`
	ReworkCount  int    `json:"reworkCount"`
	Resubmission bool   `json:"resubmission"`
}

// Encode renders the envelope for an event type and payload.
func Encode(eventType string, data any, at time.Time) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	return json.Marshal(Envelope{
		Event: eventType,
		Data:  data,
		TS:    at.UTC().Format(time.RFC3339Nano),
	})
}
