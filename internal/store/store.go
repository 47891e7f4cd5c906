package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"templateflow/internal/config"
)

// Store manages persistence backed by SQLite.
type Store struct {
	db          *sql.DB
	path        string
	busyRetries int
}

const (
	sqliteBusyCode          = 5
	sqliteLockedCode        = 6
	defaultBusyRetries      = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// dsnOptions are applied by the driver to every pooled connection.
const dsnOptions = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended result codes keep the primary code in the low byte.
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	attempts := s.busyRetries
	if attempts <= 0 {
		attempts = defaultBusyRetries
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	if isSQLiteBusy(lastErr) {
		return fmt.Errorf("%w: %v", ErrConcurrentModification, lastErr)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := s.retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the templateflow database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), cfg.Workflow.BusyRetries)
}

// OpenPath opens the database at dbPath directly.
func OpenPath(dbPath string, busyRetries int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath, busyRetries: busyRetries}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// InTx runs fn inside one immediate transaction and commits when fn returns
// nil. Any error rolls everything back. When SQLite reports the database is
// locked the whole transaction, fn included, is retried, so fn must not
// leak state between attempts.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	return s.retryOnBusy(ctx, func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		tx := &Tx{ctx: ctx, tx: sqlTx, now: time.Now().UTC()}
		if err := fn(tx); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
