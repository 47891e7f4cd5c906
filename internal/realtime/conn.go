package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"templateflow/internal/logging"
)

// Transport writes encoded frames to one client.
type Transport interface {
	WriteMessage(ctx context.Context, payload []byte) error
	Close() error
}

// Conn is one admitted client connection.
type Conn struct {
	id        string
	identity  string
	role      string
	transport Transport
	logger    *slog.Logger

	send      chan []byte
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	onClose   func()

	mu        sync.Mutex
	resources map[string]struct{}
}

func newConn(identity, role string, transport Transport, buffer int, logger *slog.Logger) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	id := uuid.NewString()
	return &Conn{
		id:        id,
		identity:  identity,
		role:      role,
		transport: transport,
		logger:    logger.With(logging.String(logging.FieldConnID, id), logging.String(logging.FieldIdentity, identity)),
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		resources: make(map[string]struct{}),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Identity() string { return c.identity }
func (c *Conn) Role() string     { return c.role }

// Done is closed once the connection is torn down and no longer a member of
// any group.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has started.
func (c *Conn) Closed() bool {
	return c.closing.Load()
}

// Resources lists the resource groups the connection has joined.
func (c *Conn) Resources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.resources))
	for resource := range c.resources {
		out = append(out, resource)
	}
	sort.Strings(out)
	return out
}

// Send queues a raw frame for this connection only.
func (c *Conn) Send(payload []byte) error {
	return c.enqueue(payload)
}

func (c *Conn) enqueue(payload []byte) error {
	if c.Closed() {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close tears the connection down exactly once: group memberships and the
// registry entry are dropped, the writer stops, then the transport closes.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		if c.onClose != nil {
			c.onClose()
		}
		close(c.done)
		err = c.transport.Close()
	})
	return err
}

// writeLoop drains the outbound queue in order until the connection closes.
func (c *Conn) writeLoop() {
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.transport.WriteMessage(ctx, payload); err != nil {
				logging.WarnWithContext(c.logger, "realtime write failed; closing connection", "realtime_write_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "client will reconnect and recompute unread counts"),
					logging.String(logging.FieldImpact, "queued events for this connection are dropped"),
				)
				_ = c.Close()
				return
			}
		}
	}
}

func (c *Conn) addResource(resource string) {
	c.mu.Lock()
	c.resources[resource] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeResource(resource string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.resources[resource]; !ok {
		return false
	}
	delete(c.resources, resource)
	return true
}
