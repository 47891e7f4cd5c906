package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"

	"templateflow/internal/auth"
	"templateflow/internal/logging"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// Inbox is the notification surface the gateway needs.
type Inbox interface {
	UnreadCount(ctx context.Context, recipient string) (int, error)
	MarkRead(ctx context.Context, recipient string, id int64) (int, error)
}

// maxControlSize caps a client message; control frames are small JSON objects.
const maxControlSize = 4 << 10

var errMessageTooLarge = errors.New("message too large")

// Options configure a Server.
type Options struct {
	Hub          *realtime.Hub
	Inbox        Inbox
	Verifier     auth.Verifier
	WriteTimeout time.Duration
	// ControlRate and ControlBurst bound control frames per connection.
	ControlRate  float64
	ControlBurst int
	Logger       *slog.Logger
}

// Server is an http.Handler upgrading verified clients to WebSocket.
type Server struct {
	hub          *realtime.Hub
	inbox        Inbox
	verifier     auth.Verifier
	writeTimeout time.Duration
	controlRate  rate.Limit
	controlBurst int
	logger       *slog.Logger
}

// New builds a gateway server.
func New(opts Options) *Server {
	limit := rate.Limit(opts.ControlRate)
	if opts.ControlRate <= 0 {
		limit = rate.Inf
	}
	burst := opts.ControlBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		hub:          opts.Hub,
		inbox:        opts.Inbox,
		verifier:     opts.Verifier,
		writeTimeout: opts.WriteTimeout,
		controlRate:  limit,
		controlBurst: burst,
		logger:       logging.NewComponentLogger(opts.Logger, "gateway"),
	}
}

// ServeHTTP verifies the caller, upgrades and serves the connection until
// the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := s.verifier.Verify(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.logger.Info("websocket admission rejected",
			logging.String("remote", r.RemoteAddr),
			logging.Error(err),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	netConn, brw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		logging.WarnWithContext(s.logger, "websocket upgrade failed", "gateway_upgrade_failed",
			logging.Error(err),
			logging.String(logging.FieldIdentity, actor.Identity),
		)
		return
	}

	transport := newTransport(netConn, s.writeTimeout)
	conn, err := s.hub.Admit(actor.Identity, actor.Role, transport)
	if err != nil {
		logging.WarnWithContext(s.logger, "websocket admission failed", "gateway_admit_failed",
			logging.Error(err),
			logging.String(logging.FieldIdentity, actor.Identity),
		)
		_ = transport.Close()
		return
	}
	var source io.Reader = netConn
	if brw != nil && brw.Reader.Buffered() > 0 {
		source = io.MultiReader(io.LimitReader(brw.Reader, int64(brw.Reader.Buffered())), netConn)
	}
	s.serve(context.WithoutCancel(r.Context()), conn, source, transport, actor)
}

func (s *Server) serve(ctx context.Context, conn *realtime.Conn, source io.Reader, transport *wsTransport, actor workflow.Actor) {
	defer conn.Close()
	ctx = logging.WithIdentity(ctx, actor.Identity)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldConnID, conn.ID()))
	logger.Info("websocket connected", logging.String(logging.FieldRole, actor.Role))

	s.sendCount(ctx, conn, actor.Identity, logger)

	limiter := rate.NewLimiter(s.controlRate, s.controlBurst)
	onControl := wsutil.ControlFrameHandler(transport, ws.StateServerSide)
	reader := &wsutil.Reader{
		Source:         source,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   maxControlSize,
		OnIntermediate: onControl,
	}

	for {
		data, op, err := readMessage(reader, onControl)
		if errors.Is(err, errMessageTooLarge) {
			s.reply(conn, realtime.EventError, errorPayload{Message: "control frame too large"}, logger)
			continue
		}
		if err != nil {
			var closed wsutil.ClosedError
			switch {
			case errors.Is(err, wsutil.ErrFrameTooLarge):
				logger.Info("websocket frame over limit", logging.Int("limit_bytes", maxControlSize))
				_ = ws.WriteFrame(transport, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusMessageTooBig, "frame too large")))
			case !errors.Is(err, io.EOF) && !errors.As(err, &closed) && !conn.Closed():
				logger.Debug("websocket read ended", logging.Error(err))
			}
			logger.Info("websocket disconnected")
			return
		}
		if op != ws.OpText {
			s.reply(conn, realtime.EventError, errorPayload{Message: "control frames must be JSON text"}, logger)
			continue
		}
		if !limiter.Allow() {
			s.reply(conn, realtime.EventError, errorPayload{Message: "rate limited"}, logger)
			continue
		}
		s.handleControl(ctx, conn, actor, data, logger)
	}
}

// readMessage returns the next data message. Control frames are answered in
// place. A single frame over the reader's MaxFrameSize fails the stream with
// wsutil.ErrFrameTooLarge; a fragmented message over maxControlSize is
// skipped and reported as errMessageTooLarge.
func readMessage(r *wsutil.Reader, onControl wsutil.FrameHandlerFunc) ([]byte, ws.OpCode, error) {
	for {
		hdr, err := r.NextFrame()
		if err != nil {
			return nil, 0, err
		}
		if hdr.OpCode.IsControl() {
			if err := onControl(hdr, r); err != nil {
				return nil, 0, err
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := r.Discard(); err != nil {
				return nil, 0, err
			}
			return nil, hdr.OpCode, nil
		}
		data, err := io.ReadAll(io.LimitReader(r, maxControlSize+1))
		if err != nil {
			return nil, 0, err
		}
		if len(data) > maxControlSize {
			if err := r.Discard(); err != nil {
				return nil, 0, err
			}
			return nil, hdr.OpCode, errMessageTooLarge
		}
		return data, hdr.OpCode, nil
	}
}

func (s *Server) handleControl(ctx context.Context, conn *realtime.Conn, actor workflow.Actor, data []byte, logger *slog.Logger) {
	frame, err := parseControl(data)
	if err != nil {
		s.reply(conn, realtime.EventError, errorPayload{Message: err.Error(), Control: frame.Type}, logger)
		return
	}

	switch frame.Type {
	case controlPing:
		s.reply(conn, realtime.EventPong, nil, logger)
	case controlJoin:
		if err := s.hub.Join(conn, frame.Resource); err != nil {
			s.reply(conn, realtime.EventError, errorPayload{Message: err.Error(), Control: frame.Type}, logger)
			return
		}
		logger.Debug("joined resource", logging.String(logging.FieldGroup, frame.Resource))
		s.reply(conn, eventJoined, resourcePayload{Resource: frame.Resource}, logger)
	case controlLeave:
		s.hub.Leave(conn, frame.Resource)
		s.reply(conn, eventLeft, resourcePayload{Resource: frame.Resource}, logger)
	case controlRead:
		if s.inbox == nil {
			return
		}
		if _, err := s.inbox.MarkRead(ctx, actor.Identity, frame.NotificationID); err != nil {
			message := "could not mark notification read"
			if errors.Is(err, store.ErrNotFound) {
				message = "notification not found"
			}
			s.reply(conn, realtime.EventError, errorPayload{Message: message, Control: frame.Type}, logger)
		}
	}
}

// sendCount pushes the recomputed unread count to this connection only.
func (s *Server) sendCount(ctx context.Context, conn *realtime.Conn, identity string, logger *slog.Logger) {
	if s.inbox == nil {
		return
	}
	count, err := s.inbox.UnreadCount(ctx, identity)
	if err != nil {
		logging.WarnWithContext(logger, "initial unread count unavailable", "gateway_count_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "badge stays stale until the next update"),
		)
		return
	}
	s.reply(conn, realtime.EventNotificationCount, realtime.CountPayload{Count: count}, logger)
}

func (s *Server) reply(conn *realtime.Conn, event string, data any, logger *slog.Logger) {
	payload, err := realtime.Encode(event, data, time.Time{})
	if err != nil {
		logger.Error("encode reply failed", logging.Error(err))
		return
	}
	if err := conn.Send(payload); err != nil {
		logger.Debug("reply dropped", logging.String("event", event), logging.Error(err))
	}
}
