package realtime

import (
	"context"
	"log/slog"

	"templateflow/internal/logging"
)

// Report summarizes one publish.
type Report struct {
	Targeted  int
	Delivered int
	Failed    int
}

// Add accumulates another report.
func (r *Report) Add(other Report) {
	r.Targeted += other.Targeted
	r.Delivered += other.Delivered
	r.Failed += other.Failed
}

// Publisher delivers events to the members of their audience group.
type Publisher struct {
	groups *Groups
	logger *slog.Logger
}

// NewPublisher returns a publisher resolving audiences through groups.
func NewPublisher(groups *Groups, logger *slog.Logger) *Publisher {
	return &Publisher{groups: groups, logger: logging.NewComponentLogger(logger, "publisher")}
}

// Publish encodes ev once and enqueues it on every current member of its
// audience. Failures are logged and counted, never returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) Report {
	logger := logging.WithContext(ctx, p.logger)
	if !ev.Audience.Valid() {
		logging.WarnWithContext(logger, "event dropped: invalid audience", "realtime_invalid_audience",
			logging.String(logging.FieldGroup, ev.Audience.String()),
			logging.String("event", ev.Type),
		)
		return Report{}
	}
	payload, err := Encode(ev.Type, ev.Data, ev.At)
	if err != nil {
		logging.ErrorWithContext(logger, "event dropped: encode failed", "realtime_encode_failed",
			logging.Error(err),
			logging.String("event", ev.Type),
		)
		return Report{}
	}

	members := p.groups.Members(ev.Audience)
	report := Report{Targeted: len(members)}
	for _, conn := range members {
		if err := conn.enqueue(payload); err != nil {
			report.Failed++
			failure := &DeliveryFailure{ConnID: conn.id, Identity: conn.identity, Event: ev.Type, Err: err}
			logging.WarnWithContext(logger, "event not delivered", "realtime_delivery_failed",
				logging.Error(failure),
				logging.String(logging.FieldConnID, conn.id),
				logging.String(logging.FieldGroup, ev.Audience.String()),
				logging.String(logging.FieldErrorHint, "client recomputes state on reconnect"),
				logging.String(logging.FieldImpact, "live update skipped for one connection"),
			)
			continue
		}
		report.Delivered++
	}
	if report.Targeted > 0 {
		logger.Debug("event published",
			logging.String("event", ev.Type),
			logging.String(logging.FieldGroup, ev.Audience.String()),
			logging.Int("delivered", report.Delivered),
			logging.Int("failed", report.Failed),
		)
	}
	return report
}
