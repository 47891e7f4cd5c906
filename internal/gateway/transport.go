package gateway

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

// wsTransport serializes every write to one WebSocket connection. Outbound
// messages are rendered into a single buffer so a frame is always one Write;
// control replies issued by the reader (pong, close) go through Write too
// and therefore never interleave with a data frame.
type wsTransport struct {
	conn    net.Conn
	timeout time.Duration

	mu     sync.Mutex
	closed sync.Once
}

func newTransport(conn net.Conn, timeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, timeout: timeout}
}

// Write implements io.Writer for control frame replies.
func (t *wsTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.conn.Write(p)
}

// WriteMessage sends payload as one text frame.
func (t *wsTransport) WriteMessage(_ context.Context, payload []byte) error {
	var buf bytes.Buffer
	buf.Grow(len(payload) + ws.MaxHeaderSize)
	if err := ws.WriteFrame(&buf, ws.NewTextFrame(payload)); err != nil {
		return err
	}
	_, err := t.Write(buf.Bytes())
	return err
}

// Close closes the socket; the reader loop observes the error and exits.
func (t *wsTransport) Close() error {
	var err error
	t.closed.Do(func() {
		err = t.conn.Close()
	})
	return err
}
