package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for work item identifiers.
	FieldItemID = "item_id"
	// FieldIdentity is the standardized structured logging key for caller identities.
	FieldIdentity = "identity"
	// FieldRole is the standardized structured logging key for caller roles.
	FieldRole = "role"
	// FieldConnID is the standardized structured logging key for realtime connection ids.
	FieldConnID = "conn_id"
	// FieldGroup is the standardized structured logging key for broadcast groups.
	FieldGroup = "group"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	itemIDKey contextKey = iota
	identityKey
	requestIDKey
)

// WithItemID tags ctx with a work item id for log enrichment.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, itemIDKey, id)
}

// WithIdentity tags ctx with the acting identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// WithRequestID tags ctx with a correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(itemIDKey).(int64); ok && id > 0 {
		fields = append(fields, slog.Int64(FieldItemID, id))
	}
	if identity, ok := ctx.Value(identityKey).(string); ok && identity != "" {
		fields = append(fields, slog.String(FieldIdentity, identity))
	}
	if rid, ok := ctx.Value(requestIDKey).(string); ok && rid != "" {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
