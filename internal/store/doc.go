// Package store persists work items, their transition log, billable records
// and notifications in SQLite.
//
// Open wires the modernc.org/sqlite driver with WAL, foreign keys and a busy
// timeout, and every write transaction is started with BEGIN IMMEDIATE so
// competing writers serialize at the database. InTx retries a transaction
// while SQLite reports it is locked and surfaces ErrConcurrentModification
// once the retry budget is spent or when a version-checked item update loses
// the race.
//
// Read helpers return nil, nil for missing rows; transaction helpers return
// ErrNotFound so callers can abort cleanly.
package store
