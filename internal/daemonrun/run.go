// Package daemonrun wires configuration, logging, storage and the daemon
// into the foreground process started by "templateflow serve".
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"templateflow/internal/config"
	"templateflow/internal/daemon"
	"templateflow/internal/logging"
	"templateflow/internal/preflight"
	"templateflow/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until a termination signal arrives or the
// server fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, unix.SIGINT, unix.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    cfg.LogPath(),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	if failed := logPreflight(context.WithoutCancel(signalCtx), logger, cfg, st); len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other daemon holds the lock"),
		)
		return err
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "templateflow.pid")
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "unable to write pid file", "pid_file_failed",
			logging.Error(err),
			logging.String("path", pidPath),
		)
	}
	defer os.Remove(pidPath)

	err = d.Wait()
	logger.Info("templateflow daemon shutting down")
	d.Stop()
	return err
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config, st *store.Store) []preflight.Result {
	results := preflight.RunAll(ctx, cfg, st)
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
		}
		switch {
		case r.Passed:
			logger.Info("preflight check", logging.Args(attrs...)...)
		case r.Required:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed", attrs...)
		default:
			logging.WarnWithContext(logger, "preflight check failed", "preflight_advisory", attrs...)
		}
	}
	return preflight.Failed(results)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
