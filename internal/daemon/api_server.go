package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"templateflow/internal/api"
	"templateflow/internal/auth"
	"templateflow/internal/logging"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

const maxBodyBytes = 64 << 10

type apiServer struct {
	logger  *slog.Logger
	daemon  *Daemon
	items   *api.ItemService
	billing *api.BillingService
	inbox   *api.NotificationService
	handler http.Handler
}

func newAPIServer(d *Daemon, ws http.Handler, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		items:   api.NewItemService(d.store, d.dispatcher),
		billing: api.NewBillingService(d.store),
		inbox:   api.NewNotificationService(d.inbox),
	}

	routes := http.NewServeMux()
	routes.HandleFunc("GET /api/status", srv.handleStatus)
	routes.HandleFunc("POST /api/items", srv.handleCreateItem)
	routes.HandleFunc("GET /api/items", srv.handleListItems)
	routes.HandleFunc("GET /api/items/{id}", srv.handleItem)
	routes.HandleFunc("POST /api/items/{id}/transition", srv.handleTransition)
	routes.HandleFunc("POST /api/items/{id}/assign", srv.handleAssign)
	routes.HandleFunc("GET /api/items/{id}/history", srv.handleHistory)
	routes.HandleFunc("GET /api/notifications", srv.handleNotifications)
	routes.HandleFunc("POST /api/notifications/{id}/read", srv.handleMarkRead)
	routes.HandleFunc("POST /api/notifications/read-all", srv.handleMarkAllRead)
	routes.HandleFunc("GET /api/billing", srv.handleBilling)
	routes.HandleFunc("POST /api/billing/{id}/advance", srv.handleAdvanceBilling)
	routes.HandleFunc("POST /api/billing/{id}/void", srv.handleVoidBilling)
	routes.HandleFunc("GET /api/presence/{identity}", srv.handlePresence)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth.Middleware(d.verifier, routes))
	mux.Handle("GET /ws", ws)
	srv.handler = mux
	return srv
}

func (s *apiServer) newServer() *http.Server {
	// No WriteTimeout: /ws connections are long-lived and manage their own
	// write deadlines.
	return &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status.toAPI(s.daemon.dispatcher.Engine().ReviewerRole()))
}

func (s *apiServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req api.CreateItemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	item, err := s.items.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ItemResponse{Item: item})
}

func (s *apiServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ItemFilter{
		Assignee: strings.TrimSpace(query.Get("assignee")),
		Creator:  strings.TrimSpace(query.Get("creator")),
	}
	for _, value := range query["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, err := workflow.ParseStatus(value)
		if err != nil {
			s.writeFailure(w, r, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	items, err := s.items.List(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: items})
}

func (s *apiServer) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	item, err := s.items.Describe(r.Context(), id, actorFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: item})
}

func (s *apiServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req api.TransitionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp, err := s.items.Transition(r.Context(), id, actorFrom(r), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req api.AssignRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp, err := s.items.Assign(r.Context(), id, actorFrom(r), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	history, err := s.items.History(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *apiServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.NotificationFilter{
		UnreadOnly: query.Get("unread") == "1" || strings.EqualFold(query.Get("unread"), "true"),
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeFailure(w, r, fmt.Errorf("%w: invalid limit %q", api.ErrInvalidRequest, value))
			return
		}
		filter.Limit = limit
	}
	resp, err := s.inbox.List(r.Context(), actorFrom(r).Identity, filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp, err := s.inbox.MarkRead(r.Context(), actorFrom(r).Identity, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	resp, err := s.inbox.MarkAllRead(r.Context(), actorFrom(r).Identity)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleBilling(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.BillableFilter{
		Assignee:      strings.TrimSpace(query.Get("assignee")),
		IncludeVoided: query.Get("voided") == "1" || strings.EqualFold(query.Get("voided"), "true"),
	}
	if value := strings.TrimSpace(query.Get("state")); value != "" {
		state, err := store.ParseBillableState(value)
		if err != nil {
			s.writeFailure(w, r, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
			return
		}
		filter.State = state
	}
	recs, err := s.billing.List(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BillableListResponse{Records: recs})
}

func (s *apiServer) handleAdvanceBilling(w http.ResponseWriter, r *http.Request) {
	if !s.requireReviewer(w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req api.AdvanceBillableRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rec, err := s.billing.Advance(r.Context(), id, req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BillableResponse{Record: rec})
}

func (s *apiServer) handleVoidBilling(w http.ResponseWriter, r *http.Request) {
	if !s.requireReviewer(w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rec, err := s.billing.Void(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BillableResponse{Record: rec})
}

func (s *apiServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.PathValue("identity"))
	presence := s.daemon.hub.Presence()
	s.writeJSON(w, http.StatusOK, api.PresenceResponse{
		Identity: identity,
		Online:   presence.IsOnline(identity),
		Devices:  presence.Devices(identity),
	})
}

// requireReviewer guards billing mutations, which only reviewers may make.
func (s *apiServer) requireReviewer(w http.ResponseWriter, r *http.Request) bool {
	if s.daemon.dispatcher.Engine().IsReviewer(actorFrom(r)) {
		return true
	}
	s.writeJSON(w, http.StatusForbidden, map[string]string{"error": "reviewer role required", "kind": "forbidden"})
	return false
}

func actorFrom(r *http.Request) workflow.Actor {
	actor, _ := auth.ActorFrom(r.Context())
	return actor
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", api.ErrInvalidRequest, raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", api.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
	} else {
		s.logger.Debug("api request rejected",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": api.ErrorKind(err)})
}
