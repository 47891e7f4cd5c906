package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"templateflow/internal/api"
	"templateflow/internal/auth"
	"templateflow/internal/config"
	"templateflow/internal/dispatch"
	"templateflow/internal/gateway"
	"templateflow/internal/logging"
	"templateflow/internal/notifications"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// ErrAlreadyRunning reports that another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another templateflow daemon instance is already running")

// Daemon coordinates the store, the realtime hub and the HTTP server, and
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	hub        *realtime.Hub
	dispatcher *dispatch.Dispatcher
	inbox      *notifications.Inbox
	verifier   auth.Verifier
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	server   *http.Server
	listener net.Listener
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Stats        store.Stats
	Online       int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := realtime.NewHub(realtime.Options{SendBuffer: cfg.Realtime.SendBuffer, Logger: logger})
	engine := workflow.NewEngine(cfg.Workflow.ReviewerRole)
	verifier := auth.NewStaticVerifier(cfg.Auth.Tokens)
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		hub:        hub,
		dispatcher: dispatch.New(st, engine, hub, logger, dispatch.WithDirectory(verifier)),
		inbox:      notifications.NewInbox(st, hub, logger),
		verifier:   verifier,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	ws := gateway.New(gateway.Options{
		Hub:          hub,
		Inbox:        d.inbox,
		Verifier:     d.verifier,
		WriteTimeout: cfg.WriteTimeout(),
		ControlRate:  cfg.Realtime.ControlRate,
		ControlBurst: cfg.Realtime.ControlBurst,
		Logger:       logger,
	})
	d.api = newAPIServer(d, ws, logger)
	return d, nil
}

// Start acquires the daemon lock, binds the API listener and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	d.listener = listener
	server := d.api.newServer()
	d.server = server

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		d.hub.Shutdown()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
	d.cancel = cancel
	d.group = group
	d.running.Store(true)

	d.logger.Info("templateflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", listener.Addr().String()),
		logging.String("database", d.store.Path()),
	)
	return nil
}

// Wait blocks until the server stops and returns its first error.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop closes live connections, shuts the server down and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil {
			logging.WarnWithContext(d.logger, "api server stopped with error", "daemon_stop_error",
				logging.Error(err),
			)
		}
		d.group = nil
	}
	d.listener = nil
	d.server = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("templateflow daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address, or "" when not serving.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Handler exposes the HTTP handler for in-process tests.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Hub returns the realtime hub.
func (d *Daemon) Hub() *realtime.Hub {
	return d.hub
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("store stats: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Stats:        stats,
		Online:       len(d.hub.Presence().Online()),
	}, nil
}

func (s Status) toAPI(reviewerRole string) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		DatabasePath: s.DatabasePath,
		LockFilePath: s.LockFilePath,
		ReviewerRole: reviewerRole,
		Stats:        api.FromStats(s.Stats, s.Online),
	}
}
