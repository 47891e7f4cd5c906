package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrConnClosed reports an operation on a connection that already closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrQueueFull reports that a connection's outbound queue had no room.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrInvalidResource reports an empty or malformed resource id.
	ErrInvalidResource = errors.New("invalid resource")
)

// DeliveryFailure records one event that could not be queued for a connection.
type DeliveryFailure struct {
	ConnID   string
	Identity string
	Event    string
	Err      error
}

func (f *DeliveryFailure) Error() string {
	return fmt.Sprintf("deliver %s to %s (%s): %v", f.Event, f.ConnID, f.Identity, f.Err)
}

func (f *DeliveryFailure) Unwrap() error {
	return f.Err
}
