package dispatch

import (
	"context"
	"time"

	"templateflow/internal/logging"
	"templateflow/internal/notifications"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// EventBillableCreated tells an assignee a billable record was opened.
const EventBillableCreated = "billing:created"

// BillablePayload is the data of billing:created.
type BillablePayload struct {
	ID     int64  `json:"id"`
	ItemID int64  `json:"itemId"`
	Amount int64  `json:"amount"`
	State  string `json:"state"`
}

// materialize turns committed side effects into events. Unread counts are
// recomputed from the store for every notified recipient.
func (d *Dispatcher) materialize(ctx context.Context, res *Result, actor workflow.Actor) []realtime.Event {
	item := res.Item
	at := item.UpdatedAt
	var events []realtime.Event

	byRecipient := make(map[string][]*store.Notification)
	var recipients []string
	for _, n := range res.Notifications {
		if _, seen := byRecipient[n.Recipient]; !seen {
			recipients = append(recipients, n.Recipient)
		}
		byRecipient[n.Recipient] = append(byRecipient[n.Recipient], n)
	}

	for _, effect := range res.Outcome.Effects {
		switch effect.Kind {
		case workflow.EffectCreateBillableRecord:
			if res.Billable == nil || res.Billable.Assignee == "" {
				continue
			}
			events = append(events, realtime.Event{
				Audience: realtime.IdentityGroup(res.Billable.Assignee),
				Type:     EventBillableCreated,
				Data: BillablePayload{
					ID:     res.Billable.ID,
					ItemID: res.Billable.ItemID,
					Amount: res.Billable.Amount,
					State:  string(res.Billable.State),
				},
				At: at,
			})
		case workflow.EffectNotifyAssignee, workflow.EffectNotifyWatchers:
			events = appendStored(events, effect.Recipients, byRecipient, false, at)
		case workflow.EffectNotifyReviewers:
			if d.directory != nil {
				events = appendStored(events, effect.Recipients, byRecipient, res.Outcome.Resubmission, at)
				continue
			}
			text := notifications.Compose(effect.Notice, itemRef(item), notifications.Options{
				Actor:       actor.Identity,
				From:        res.Outcome.From,
				To:          res.Outcome.To,
				ReworkCount: item.ReworkCount,
			})
			events = append(events, realtime.Event{
				Audience: realtime.RoleGroup(effect.Role),
				Type:     realtime.EventNotificationNew,
				Data: realtime.NotificationPayload{
					Kind:          text.Kind,
					Title:         text.Title,
					Message:       text.Message,
					RelatedItemID: item.ID,
					Resubmission:  res.Outcome.Resubmission,
				},
				At: at,
			})
		case workflow.EffectBroadcastStatus:
			events = append(events, realtime.Event{
				Audience: realtime.ResourceGroup(realtime.ItemResource(item.ID)),
				Type:     realtime.EventItemStatus,
				Data: realtime.StatusPayload{
					ItemID:       item.ID,
					From:         string(res.Outcome.From),
					To:           string(res.Outcome.To),
					Actor:        actor.Identity,
					ReworkCount:  item.ReworkCount,
					Resubmission: res.Outcome.Resubmission,
				},
				At: at,
			})
		}
	}

	for _, recipient := range recipients {
		count, err := d.store.UnreadCount(ctx, recipient)
		if err != nil {
			logging.WarnWithContext(d.logger, "unread count unavailable after commit", "dispatch_count_failed",
				logging.Error(err),
				logging.String(logging.FieldIdentity, recipient),
				logging.String(logging.FieldImpact, "badge stays stale until the next update"),
			)
			continue
		}
		events = append(events, realtime.Event{
			Audience: realtime.IdentityGroup(recipient),
			Type:     realtime.EventNotificationCount,
			Data:     realtime.CountPayload{Count: count},
			At:       at,
		})
	}
	return events
}

// appendStored emits notification:new for each persisted row of recipients.
func appendStored(events []realtime.Event, recipients []string, byRecipient map[string][]*store.Notification, resubmission bool, at time.Time) []realtime.Event {
	for _, recipient := range recipients {
		for _, n := range byRecipient[recipient] {
			events = append(events, realtime.Event{
				Audience: realtime.IdentityGroup(recipient),
				Type:     realtime.EventNotificationNew,
				Data: realtime.NotificationPayload{
					ID:            n.ID,
					Kind:          n.Kind,
					Title:         n.Title,
					Message:       n.Message,
					RelatedItemID: n.ItemID,
					Resubmission:  resubmission,
				},
				At: at,
			})
		}
	}
	return events
}

func (d *Dispatcher) publish(ctx context.Context, res *Result) {
	if d.publisher == nil {
		return
	}
	for _, ev := range res.Events {
		res.Report.Add(d.publisher.Publish(ctx, ev))
	}
}
