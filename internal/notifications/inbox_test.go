package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"templateflow/internal/logging"
	"templateflow/internal/notifications"
	"templateflow/internal/realtime"
	"templateflow/internal/store"
	"templateflow/internal/testsupport"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev realtime.Event) realtime.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return realtime.Report{Targeted: 1, Delivered: 1}
}

func (r *recordingPublisher) counts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, ev := range r.events {
		if payload, ok := ev.Data.(realtime.CountPayload); ok {
			out = append(out, payload.Count)
		}
	}
	return out
}

func TestInboxMarkReadPublishesRecomputedCount(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "carl", 0)

	var ids []int64
	err := st.InTx(ctx, func(tx *store.Tx) error {
		for i := 0; i < 3; i++ {
			n, err := tx.InsertNotification(store.Notification{Recipient: "fred", Kind: "assigned", Title: "t", Message: "m", ItemID: item.ID})
			if err != nil {
				return err
			}
			ids = append(ids, n.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	pub := &recordingPublisher{}
	inbox := notifications.NewInbox(st, pub, logging.NewNop())

	count, err := inbox.MarkRead(ctx, "fred", ids[1])
	if err != nil || count != 2 {
		t.Fatalf("MarkRead: %d %v", count, err)
	}
	if _, err := inbox.MarkRead(ctx, "fred", ids[1]); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
	if _, err := inbox.MarkRead(ctx, "rita", ids[0]); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	count, err = inbox.MarkAllRead(ctx, "fred")
	if err != nil || count != 0 {
		t.Fatalf("MarkAllRead: %d %v", count, err)
	}
	if _, err := inbox.MarkAllRead(ctx, "fred"); err != nil {
		t.Fatalf("repeat MarkAllRead: %v", err)
	}

	got := pub.counts()
	if len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Fatalf("expected counts [2 0], got %v", got)
	}
	for _, ev := range pub.events {
		if ev.Audience != realtime.IdentityGroup("fred") || ev.Type != realtime.EventNotificationCount {
			t.Fatalf("unexpected event %#v", ev)
		}
	}

	list, err := inbox.List(ctx, "fred", store.NotificationFilter{})
	if err != nil || len(list) != 3 {
		t.Fatalf("rows must persist, got %d (%v)", len(list), err)
	}

	inbox.PushCount(ctx, "fred")
	if got := pub.counts(); got[len(got)-1] != 0 {
		t.Fatalf("expected pushed count 0, got %v", got)
	}
}
