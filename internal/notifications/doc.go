// Package notifications composes user-facing notification texts and serves
// each identity's persisted inbox.
//
// Compose maps a workflow notice to a consistent title and message so the
// dispatcher, API and gateway never format strings themselves. Inbox wraps
// the store's notification rows: rows are only ever created by the
// dispatcher and only their read marker changes afterwards. Every read
// marker change publishes a freshly counted notification:count event to the
// recipient's devices.
package notifications
