package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"templateflow/internal/auth"
	"templateflow/internal/gateway"
	"templateflow/internal/logging"
	"templateflow/internal/notifications"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/testsupport"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn net.Conn
	rw   io.ReadWriter
}

func (c *client) send(t *testing.T, msg string) {
	t.Helper()
	if err := wsutil.WriteClientText(c.conn, []byte(msg)); err != nil {
		t.Fatalf("write %s: %v", msg, err)
	}
}

func (c *client) next(t *testing.T) frame {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(c.rw)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return f
}

type env struct {
	store  *store.Store
	hub    *realtime.Hub
	server *httptest.Server
}

func newEnv(t *testing.T, rate float64, burst int) env {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithToken("tok-fred", "fred", "freelancer"),
		testsupport.WithToken("tok-rita", "rita", "reviewer"),
	)
	st := testsupport.MustOpenStore(t, cfg)
	hub := realtime.NewHub(realtime.Options{SendBuffer: 16, Logger: logging.NewNop()})
	inbox := notifications.NewInbox(st, hub, logging.NewNop())
	srv := gateway.New(gateway.Options{
		Hub:          hub,
		Inbox:        inbox,
		Verifier:     auth.NewStaticVerifier(cfg.Auth.Tokens),
		WriteTimeout: cfg.WriteTimeout(),
		ControlRate:  rate,
		ControlBurst: burst,
		Logger:       logging.NewNop(),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		hub.Shutdown()
		ts.Close()
	})
	return env{store: st, hub: hub, server: ts}
}

func (e env) dial(t *testing.T, token string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?token=" + token
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	var reader io.Reader = conn
	if br != nil {
		reader = br
	}
	return &client{conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{reader, conn}}
}

func seedNotification(t *testing.T, st *store.Store, recipient string) int64 {
	t.Helper()
	var id int64
	err := st.InTx(context.Background(), func(tx *store.Tx) error {
		n, err := tx.InsertNotification(store.Notification{
			Recipient: recipient,
			Kind:      "assigned",
			Title:     "New assignment",
			Message:   "carl assigned \"Landing page\" to you.",
		})
		if err != nil {
			return err
		}
		id = n.ID
		return nil
	})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return id
}

func countOf(t *testing.T, f frame) int {
	t.Helper()
	if f.Event != realtime.EventNotificationCount {
		t.Fatalf("expected count frame, got %s", f.Event)
	}
	var payload realtime.CountPayload
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	return payload.Count
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRejectsUnauthenticatedClients(t *testing.T) {
	e := newEnv(t, 0, 0)

	resp, err := http.Get(e.server.URL + "/?token=wrong")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if e.hub.Registry().Len() != 0 {
		t.Fatal("rejected client must not be registered")
	}
}

func TestInitialCountIsPushedOnConnect(t *testing.T) {
	e := newEnv(t, 0, 0)
	seedNotification(t, e.store, "fred")
	seedNotification(t, e.store, "fred")

	c := e.dial(t, "tok-fred")
	if got := countOf(t, c.next(t)); got != 2 {
		t.Fatalf("expected initial count 2, got %d", got)
	}
	waitFor(t, func() bool { return e.hub.Presence().IsOnline("fred") })
}

func TestPingAndResourceSubscription(t *testing.T) {
	e := newEnv(t, 0, 0)
	c := e.dial(t, "tok-rita")
	countOf(t, c.next(t))

	c.send(t, `{"type":"ping"}`)
	if f := c.next(t); f.Event != realtime.EventPong {
		t.Fatalf("expected pong, got %s", f.Event)
	}

	resource := realtime.ItemResource(7)
	c.send(t, `{"type":"join","resource":"`+resource+`"}`)
	if f := c.next(t); f.Event != "joined" {
		t.Fatalf("expected joined ack, got %s", f.Event)
	}

	report := e.hub.Publish(context.Background(), realtime.Event{
		Audience: realtime.ResourceGroup(resource),
		Type:     realtime.EventItemStatus,
		Data:     realtime.StatusPayload{ItemID: 7, From: "submitted", To: "reviewed", Actor: "rita"},
	})
	if report.Delivered != 1 {
		t.Fatalf("expected one delivery, got %+v", report)
	}
	f := c.next(t)
	if f.Event != realtime.EventItemStatus {
		t.Fatalf("expected status event, got %s", f.Event)
	}
	var status realtime.StatusPayload
	if err := json.Unmarshal(f.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.ItemID != 7 || status.To != "reviewed" {
		t.Fatalf("unexpected status payload %+v", status)
	}

	c.send(t, `{"type":"leave","resource":"`+resource+`"}`)
	if f := c.next(t); f.Event != "left" {
		t.Fatalf("expected left ack, got %s", f.Event)
	}
	if n := e.hub.Groups().Size(realtime.ResourceGroup(resource)); n != 0 {
		t.Fatalf("expected empty resource group, got %d", n)
	}
}

func TestMalformedControlFramesGetErrors(t *testing.T) {
	e := newEnv(t, 0, 0)
	c := e.dial(t, "tok-fred")
	countOf(t, c.next(t))

	for _, msg := range []string{
		`not json`,
		`{"type":"join"}`,
		`{"type":"dance"}`,
		`{"type":"read"}`,
	} {
		c.send(t, msg)
		if f := c.next(t); f.Event != realtime.EventError {
			t.Fatalf("%s: expected error event, got %s", msg, f.Event)
		}
	}

	c.send(t, `{"type":"ping"}`)
	if f := c.next(t); f.Event != realtime.EventPong {
		t.Fatalf("connection should survive bad frames, got %s", f.Event)
	}
}

func TestReadControlUpdatesEveryDevice(t *testing.T) {
	e := newEnv(t, 0, 0)
	id := seedNotification(t, e.store, "fred")

	phone := e.dial(t, "tok-fred")
	laptop := e.dial(t, "tok-fred")
	countOf(t, phone.next(t))
	countOf(t, laptop.next(t))

	phone.send(t, `{"type":"read","notificationId":`+jsonInt(id)+`}`)
	if got := countOf(t, phone.next(t)); got != 0 {
		t.Fatalf("phone expected count 0, got %d", got)
	}
	if got := countOf(t, laptop.next(t)); got != 0 {
		t.Fatalf("laptop expected count 0, got %d", got)
	}

	other := seedNotification(t, e.store, "rita")
	phone.send(t, `{"type":"read","notificationId":`+jsonInt(other)+`}`)
	if f := phone.next(t); f.Event != realtime.EventError {
		t.Fatalf("reading another recipient's notification should fail, got %s", f.Event)
	}
}

func TestControlFramesAreRateLimited(t *testing.T) {
	e := newEnv(t, 0.001, 1)
	c := e.dial(t, "tok-fred")
	countOf(t, c.next(t))

	c.send(t, `{"type":"ping"}`)
	if f := c.next(t); f.Event != realtime.EventPong {
		t.Fatalf("expected pong, got %s", f.Event)
	}
	c.send(t, `{"type":"ping"}`)
	f := c.next(t)
	if f.Event != realtime.EventError || !strings.Contains(string(f.Data), "rate limited") {
		t.Fatalf("expected rate limit error, got %s %s", f.Event, f.Data)
	}
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	e := newEnv(t, 0, 0)
	c := e.dial(t, "tok-fred")
	countOf(t, c.next(t))
	waitFor(t, func() bool { return e.hub.Presence().IsOnline("fred") })

	c.send(t, `{"type":"join","resource":"`+strings.Repeat("x", 8<<10)+`"}`)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// The unread payload may reset the socket before the close frame is read.
	if f, err := ws.ReadFrame(c.rw); err == nil {
		code, _ := ws.ParseCloseFrameData(f.Payload)
		if f.Header.OpCode != ws.OpClose || code != ws.StatusMessageTooBig {
			t.Fatalf("expected message-too-big close, got op=%v code=%v", f.Header.OpCode, code)
		}
	}
	waitFor(t, func() bool { return !e.hub.Presence().IsOnline("fred") })
}

func TestOversizedFragmentedMessageIsSkipped(t *testing.T) {
	e := newEnv(t, 0, 0)
	c := e.dial(t, "tok-fred")
	countOf(t, c.next(t))

	chunk := []byte(strings.Repeat("x", 3<<10))
	frames := []ws.Frame{
		ws.NewFrame(ws.OpText, false, append([]byte(nil), chunk...)),
		ws.NewFrame(ws.OpContinuation, false, append([]byte(nil), chunk...)),
		ws.NewFrame(ws.OpContinuation, true, append([]byte(nil), chunk...)),
	}
	for _, f := range frames {
		if err := ws.WriteFrame(c.conn, ws.MaskFrameInPlace(f)); err != nil {
			t.Fatalf("write fragment: %v", err)
		}
	}
	f := c.next(t)
	if f.Event != realtime.EventError || !strings.Contains(string(f.Data), "too large") {
		t.Fatalf("expected size error, got %s %s", f.Event, f.Data)
	}

	c.send(t, `{"type":"ping"}`)
	if f := c.next(t); f.Event != realtime.EventPong {
		t.Fatalf("connection should survive a skipped message, got %s", f.Event)
	}
}

func TestDisconnectRemovesPresence(t *testing.T) {
	e := newEnv(t, 0, 0)
	c := e.dial(t, "tok-fred")
	countOf(t, c.next(t))
	waitFor(t, func() bool { return e.hub.Presence().IsOnline("fred") })

	_ = c.conn.Close()
	waitFor(t, func() bool { return !e.hub.Presence().IsOnline("fred") })
	if n := e.hub.Groups().Size(realtime.IdentityGroup("fred")); n != 0 {
		t.Fatalf("identity group should be empty, got %d", n)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
