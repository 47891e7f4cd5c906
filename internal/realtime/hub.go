package realtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"templateflow/internal/logging"
)

// Options configure a Hub.
type Options struct {
	// SendBuffer bounds each connection's outbound queue.
	SendBuffer int
	Logger     *slog.Logger
}

// Hub wires the registry, group table and publisher together.
type Hub struct {
	registry   *Registry
	groups     *Groups
	publisher  *Publisher
	sendBuffer int
	logger     *slog.Logger
}

// NewHub constructs an empty hub.
func NewHub(opts Options) *Hub {
	logger := logging.NewComponentLogger(opts.Logger, "realtime")
	groups := NewGroups()
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		registry:   NewRegistry(),
		groups:     groups,
		publisher:  NewPublisher(groups, opts.Logger),
		sendBuffer: buffer,
		logger:     logger,
	}
}

// Admit registers a verified client and subscribes it to its identity and
// role groups. Memberships are computed fresh on every admission.
func (h *Hub) Admit(identity, role string, transport Transport) (*Conn, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	conn := newConn(identity, strings.ToLower(strings.TrimSpace(role)), transport, h.sendBuffer, h.logger)
	unregister := h.registry.Register(conn)
	conn.onClose = func() {
		h.groups.Remove(conn)
		unregister()
		conn.logger.Debug("connection closed")
	}
	if err := h.groups.Admit(conn); err != nil {
		unregister()
		return nil, err
	}
	go conn.writeLoop()
	conn.logger.Debug("connection admitted", logging.String(logging.FieldRole, conn.role))
	return conn, nil
}

// Join subscribes conn to a resource group.
func (h *Hub) Join(conn *Conn, resource string) error {
	return h.groups.JoinResource(conn, resource)
}

// Leave unsubscribes conn from a resource group.
func (h *Hub) Leave(conn *Conn, resource string) bool {
	return h.groups.LeaveResource(conn, resource)
}

// Publish delivers ev to its audience.
func (h *Hub) Publish(ctx context.Context, ev Event) Report {
	return h.publisher.Publish(ctx, ev)
}

// Presence returns the read-only presence view.
func (h *Hub) Presence() Presence {
	return Presence{registry: h.registry}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Groups exposes the membership table.
func (h *Hub) Groups() *Groups {
	return h.groups
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	for _, identity := range h.registry.Identities() {
		for _, conn := range h.registry.Connections(identity) {
			_ = conn.Close()
		}
	}
}
