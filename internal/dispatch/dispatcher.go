package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"templateflow/internal/logging"
	"templateflow/internal/notifications"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// Store is the transactional surface the dispatcher needs.
type Store interface {
	InTx(ctx context.Context, fn func(*store.Tx) error) error
	UnreadCount(ctx context.Context, recipient string) (int, error)
}

// Publisher delivers realtime events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) realtime.Report
}

// Directory lists the identities that hold a role. Reviewer notices are
// stored once per listed identity.
type Directory interface {
	IdentitiesWithRole(role string) []string
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithDirectory persists role-addressed notices for every identity dir lists.
// Without one, those notices are only delivered live to the role group.
func WithDirectory(dir Directory) Option {
	return func(d *Dispatcher) {
		d.directory = dir
	}
}

// Result describes a committed transition.
type Result struct {
	Item    *store.Item
	Outcome workflow.Outcome
	// Transition is the appended log entry.
	Transition store.Transition
	// Billable is set when this call created a billable record.
	Billable      *store.BillableRecord
	Notifications []*store.Notification
	// Events are the materialized domain events handed to the publisher.
	Events []realtime.Event
	Report realtime.Report
}

// NewStatus is the status the item holds after the transition.
func (r *Result) NewStatus() workflow.Status {
	return r.Outcome.To
}

// Dispatcher executes engine decisions against the store.
type Dispatcher struct {
	store     Store
	engine    workflow.Engine
	publisher Publisher
	directory Directory
	logger    *slog.Logger
	locks     *itemLocks
}

// New builds a dispatcher. A nil publisher disables live delivery.
func New(st Store, engine workflow.Engine, publisher Publisher, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     st,
		engine:    engine,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "dispatch"),
		locks:     newItemLocks(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Engine returns the workflow engine used for decisions.
func (d *Dispatcher) Engine() workflow.Engine {
	return d.engine
}

// Transition moves an item to the requested status on behalf of actor.
func (d *Dispatcher) Transition(ctx context.Context, itemID int64, to workflow.Status, actor workflow.Actor) (*Result, error) {
	return d.apply(ctx, itemID, actor, func(item workflow.Item) (workflow.Outcome, error) {
		return d.engine.Transition(item, to, actor)
	})
}

// Assign hands a new item to assignee, moving it to assigned.
func (d *Dispatcher) Assign(ctx context.Context, itemID int64, assignee string, actor workflow.Actor) (*Result, error) {
	return d.apply(ctx, itemID, actor, func(item workflow.Item) (workflow.Outcome, error) {
		return d.engine.Assign(item, assignee, actor)
	})
}

type decideFunc func(workflow.Item) (workflow.Outcome, error)

func (d *Dispatcher) apply(ctx context.Context, itemID int64, actor workflow.Actor, decide decideFunc) (*Result, error) {
	ctx = logging.WithIdentity(logging.WithItemID(ctx, itemID), actor.Identity)
	logger := logging.WithContext(ctx, d.logger)

	release := d.locks.Lock(itemID)
	defer release()

	// Once we hold the item, finish the transaction even if the caller goes away.
	txCtx := context.WithoutCancel(ctx)

	var result *Result
	err := d.store.InTx(txCtx, func(tx *store.Tx) error {
		result = nil
		res, err := d.execute(tx, itemID, actor, decide)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			logger.Info("transition rejected", logging.Error(err))
		} else {
			logging.WarnWithContext(logger, "transition failed", "dispatch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "retry the request; nothing was applied"),
				logging.String(logging.FieldImpact, "item status unchanged"),
			)
		}
		return nil, err
	}

	logger.Info("transition applied",
		logging.String("from", string(result.Outcome.From)),
		logging.String("to", string(result.Outcome.To)),
		logging.Int("rework_count", result.Item.ReworkCount),
		logging.Bool("billable_created", result.Billable != nil),
	)

	result.Events = d.materialize(txCtx, result, actor)
	d.publish(txCtx, result)
	return result, nil
}

func (d *Dispatcher) execute(tx *store.Tx, itemID int64, actor workflow.Actor, decide decideFunc) (*Result, error) {
	item, err := tx.Item(itemID)
	if err != nil {
		return nil, err
	}

	outcome, err := decide(item.Snapshot())
	if err != nil {
		return nil, err
	}

	res := &Result{Outcome: outcome}
	item.Status = outcome.To
	item.Assignee = outcome.Assignee
	if outcome.FirstCompletion {
		completed := tx.Now()
		item.FirstCompletedAt = &completed
	}
	if outcome.Has(workflow.EffectIncrementReworkCounter) {
		item.ReworkCount++
	}
	if err := tx.UpdateItem(item); err != nil {
		return nil, err
	}

	res.Transition, err = tx.AppendTransition(store.Transition{
		ItemID:    item.ID,
		From:      outcome.From,
		To:        outcome.To,
		Actor:     actor.Identity,
		ActorRole: actor.Role,
	})
	if err != nil {
		return nil, err
	}

	for i := range res.Outcome.Effects {
		effect := &res.Outcome.Effects[i]
		switch effect.Kind {
		case workflow.EffectCreateBillableRecord:
			existing, err := tx.ActiveBillable(item.ID)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}
			rec, err := tx.InsertBillable(item.ID, item.Assignee, effect.Amount)
			if err != nil {
				return nil, fmt.Errorf("create billable record: %w", err)
			}
			res.Billable = rec
		case workflow.EffectNotifyReviewers:
			if d.directory == nil {
				// Live-only to the role group, materialized after commit.
				continue
			}
			effect.Recipients = reviewerRecipients(d.directory.IdentitiesWithRole(effect.Role), actor)
			if err := d.persistNotices(tx, res, *effect, item, actor); err != nil {
				return nil, err
			}
		case workflow.EffectNotifyAssignee, workflow.EffectNotifyWatchers:
			if err := d.persistNotices(tx, res, *effect, item, actor); err != nil {
				return nil, err
			}
		case workflow.EffectIncrementReworkCounter, workflow.EffectBroadcastStatus:
			// Counter applied above; the status event is materialized after commit.
		default:
			return nil, fmt.Errorf("unsupported side effect %q", effect.Kind)
		}
	}

	res.Item = item
	return res, nil
}

func (d *Dispatcher) persistNotices(tx *store.Tx, res *Result, effect workflow.Effect, item *store.Item, actor workflow.Actor) error {
	if len(effect.Recipients) == 0 {
		return nil
	}
	text := notifications.Compose(effect.Notice, itemRef(item), notifications.Options{
		Actor:       actor.Identity,
		From:        res.Outcome.From,
		To:          res.Outcome.To,
		ReworkCount: item.ReworkCount,
	})
	for _, recipient := range effect.Recipients {
		n, err := tx.InsertNotification(store.Notification{
			Recipient: recipient,
			Kind:      text.Kind,
			Title:     text.Title,
			Message:   text.Message,
			ItemID:    item.ID,
		})
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
	}
	return nil
}

// reviewerRecipients drops the acting identity from the role's members.
func reviewerRecipients(identities []string, actor workflow.Actor) []string {
	out := make([]string, 0, len(identities))
	for _, identity := range identities {
		if identity != actor.Identity {
			out = append(out, identity)
		}
	}
	return out
}

func itemRef(item *store.Item) notifications.ItemRef {
	return notifications.ItemRef{ID: item.ID, Title: item.Title, TemplateRef: item.TemplateRef}
}
