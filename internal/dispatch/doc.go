// Package dispatch applies workflow transitions and their side effects.
//
// A Dispatcher serializes requests per item, loads the item inside one
// immediate store transaction, asks the workflow engine for a decision and
// executes every side effect in the same transaction: the version-checked
// status update, the transition log entry, the idempotent billable record
// and the persisted notifications. Either all of it commits or none of it
// does. The commit is detached from request cancellation so a client that
// disconnects mid-request cannot leave a half-applied change.
//
// Only after commit are domain events materialized and handed to the
// publisher; delivery problems never fail the call.
package dispatch
