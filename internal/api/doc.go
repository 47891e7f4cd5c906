// Package api defines wire-format types, converters and the service layer
// behind the HTTP API and the CLI. It translates store models into
// transport-friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// Item: a work item with its status, assignee, rework counter and, when an
// actor is known, the statuses that actor may move it to next.
//
// TransitionResponse: the synchronous answer to a transition or assignment,
// carrying the new status and any billable record the call created.
//
// Billable/Notification: billing and inbox rows.
//
// # Services
//
// ItemService, BillingService and NotificationService wrap the store, the
// dispatcher and the inbox and return DTOs. HTTPStatus maps domain errors to
// response codes.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are lowercase strings. Timestamps use
// RFC3339 with milliseconds. Amounts are integer minor units.
package api
