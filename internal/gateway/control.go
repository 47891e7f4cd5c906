package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Control frame types accepted from clients.
const (
	controlJoin  = "join"
	controlLeave = "leave"
	controlPing  = "ping"
	controlRead  = "read"
)

// Events only sent in reply to control frames.
const (
	eventJoined = "joined"
	eventLeft   = "left"
)

type controlFrame struct {
	Type           string `json:"type"`
	Resource       string `json:"resource,omitempty"`
	NotificationID int64  `json:"notificationId,omitempty"`
}

type resourcePayload struct {
	Resource string `json:"resource"`
}

type errorPayload struct {
	Message string `json:"message"`
	Control string `json:"control,omitempty"`
}

func parseControl(data []byte) (controlFrame, error) {
	var frame controlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return controlFrame{}, fmt.Errorf("decode control frame: %w", err)
	}
	frame.Type = strings.ToLower(strings.TrimSpace(frame.Type))
	frame.Resource = strings.TrimSpace(frame.Resource)
	switch frame.Type {
	case controlJoin, controlLeave:
		if frame.Resource == "" {
			return frame, fmt.Errorf("%s requires a resource", frame.Type)
		}
	case controlRead:
		if frame.NotificationID <= 0 {
			return frame, fmt.Errorf("read requires a notificationId")
		}
	case controlPing:
	default:
		return frame, fmt.Errorf("unknown control type %q", frame.Type)
	}
	return frame, nil
}
