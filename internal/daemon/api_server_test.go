package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"templateflow/internal/api"
	"templateflow/internal/testsupport"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithToken("tok-carl", "carl", "client"),
		testsupport.WithToken("tok-fred", "fred", "freelancer"),
		testsupport.WithToken("tok-rita", "rita", "reviewer"),
	)
	d := newDaemon(t, cfg)
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		d.Hub().Shutdown()
		srv.Close()
	})
	return &apiClient{t: t, server: srv}
}

func (c *apiClient) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *apiClient) transition(id int64, token, status string) int {
	c.t.Helper()
	return c.do(http.MethodPost, fmt.Sprintf("/api/items/%d/transition", id), token, api.TransitionRequest{Status: status}, nil)
}

func TestAPIRequiresToken(t *testing.T) {
	c := newAPIClient(t)
	if code := c.do(http.MethodGet, "/api/items", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := c.do(http.MethodGet, "/api/items", "nope", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAPIReviewPipeline(t *testing.T) {
	c := newAPIClient(t)

	var created api.ItemResponse
	if code := c.do(http.MethodPost, "/api/items", "tok-carl", api.CreateItemRequest{TemplateRef: "tpl-1", Title: "Landing", Price: 2500}, &created); code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	id := created.Item.ID

	if code := c.transition(id, "tok-rita", "published"); code != http.StatusUnprocessableEntity {
		t.Fatalf("illegal edge expected 422, got %d", code)
	}
	if code := c.do(http.MethodPost, fmt.Sprintf("/api/items/%d/assign", id), "tok-carl", api.AssignRequest{Assignee: "fred"}, nil); code != http.StatusOK {
		t.Fatalf("assign: %d", code)
	}
	if code := c.transition(id, "tok-fred", "in_progress"); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}
	if code := c.transition(id, "tok-fred", "submitted"); code != http.StatusOK {
		t.Fatalf("submit: %d", code)
	}
	if code := c.transition(id, "tok-fred", "reviewed"); code != http.StatusUnprocessableEntity {
		t.Fatalf("self-review expected 422, got %d", code)
	}

	var reviewed api.TransitionResponse
	if code := c.do(http.MethodPost, fmt.Sprintf("/api/items/%d/transition", id), "tok-rita", api.TransitionRequest{Status: "reviewed"}, &reviewed); code != http.StatusOK {
		t.Fatalf("review: %d", code)
	}
	if reviewed.NewStatus != "reviewed" || reviewed.Billable == nil {
		t.Fatalf("unexpected review response %+v", reviewed)
	}

	var history api.HistoryResponse
	if code := c.do(http.MethodGet, fmt.Sprintf("/api/items/%d/history", id), "tok-carl", nil, &history); code != http.StatusOK {
		t.Fatalf("history: %d", code)
	}
	if len(history.Transitions) != 4 {
		t.Fatalf("expected 4 transitions, got %d", len(history.Transitions))
	}

	var billing api.BillableListResponse
	if code := c.do(http.MethodGet, "/api/billing?state=pending", "tok-rita", nil, &billing); code != http.StatusOK {
		t.Fatalf("billing: %d", code)
	}
	if len(billing.Records) != 1 || billing.Records[0].Amount != 2500 {
		t.Fatalf("unexpected billing %+v", billing)
	}
	advancePath := fmt.Sprintf("/api/billing/%d/advance", billing.Records[0].ID)
	if code := c.do(http.MethodPost, advancePath, "tok-fred", api.AdvanceBillableRequest{State: "invoiced"}, nil); code != http.StatusForbidden {
		t.Fatalf("non-reviewer advance expected 403, got %d", code)
	}
	if code := c.do(http.MethodPost, advancePath, "tok-rita", api.AdvanceBillableRequest{State: "invoiced"}, nil); code != http.StatusOK {
		t.Fatalf("advance: %d", code)
	}

	var inbox api.NotificationListResponse
	if code := c.do(http.MethodGet, "/api/notifications?unread=true", "tok-fred", nil, &inbox); code != http.StatusOK {
		t.Fatalf("notifications: %d", code)
	}
	if inbox.Unread == 0 || len(inbox.Notifications) != inbox.Unread {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	var unread api.UnreadResponse
	if code := c.do(http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", inbox.Notifications[0].ID), "tok-fred", nil, &unread); code != http.StatusOK {
		t.Fatalf("mark read: %d", code)
	}
	if unread.Unread != inbox.Unread-1 {
		t.Fatalf("expected %d unread, got %d", inbox.Unread-1, unread.Unread)
	}
	if code := c.do(http.MethodPost, "/api/notifications/read-all", "tok-fred", nil, &unread); code != http.StatusOK || unread.Unread != 0 {
		t.Fatalf("read-all: %d %+v", code, unread)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	c := newAPIClient(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"missing item", http.MethodGet, "/api/items/404", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/items/abc", nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/items?status=done", nil, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/items", nil, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/items", map[string]any{"templateRef": "x", "colour": "red"}, http.StatusBadRequest},
		{"transition missing item", http.MethodPost, "/api/items/404/transition", api.TransitionRequest{Status: "assigned"}, http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/items", nil, http.StatusMethodNotAllowed},
		{"bad billing state", http.MethodGet, "/api/billing?state=lost", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := c.do(tt.method, tt.path, "tok-rita", tt.body, nil); code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, code)
			}
		})
	}
}

func TestAPIPresenceTracksWebSocketClients(t *testing.T) {
	c := newAPIClient(t)

	var presence api.PresenceResponse
	if code := c.do(http.MethodGet, "/api/presence/fred", "tok-rita", nil, &presence); code != http.StatusOK || presence.Online {
		t.Fatalf("fred should start offline: %d %+v", code, presence)
	}

	url := "ws" + strings.TrimPrefix(c.server.URL, "http") + "/ws?token=tok-fred"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	var reader io.Reader = conn
	if br != nil {
		reader = br
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(struct {
		io.Reader
		io.Writer
	}{reader, conn})
	if err != nil {
		t.Fatalf("read initial count: %v", err)
	}
	if !strings.Contains(string(data), "notification:count") {
		t.Fatalf("expected count frame, got %s", data)
	}

	if code := c.do(http.MethodGet, "/api/presence/fred", "tok-rita", nil, &presence); code != http.StatusOK {
		t.Fatalf("presence: %d", code)
	}
	if !presence.Online || presence.Devices != 1 {
		t.Fatalf("expected fred online on one device, got %+v", presence)
	}
}
