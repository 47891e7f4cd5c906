package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"templateflow/internal/store"
	"templateflow/internal/testsupport"
	"templateflow/internal/workflow"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewItem(t, st, "carl", 1200)
	if item.ID == 0 || item.Status != workflow.StatusNew || item.Version != 1 {
		t.Fatalf("unexpected item %#v", item)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if fetched == nil || fetched.Title != "Landing page" || fetched.Price != 1200 {
		t.Fatalf("unexpected fetched item %#v", fetched)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	db := rawDB(t, st)
	if _, err := db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	st.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestCreateItemValidation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []store.NewItem{
		{Creator: "carl"},
		{TemplateRef: "tpl"},
		{TemplateRef: "tpl", Creator: "carl", Price: -1},
	}
	for _, in := range cases {
		if _, err := st.CreateItem(ctx, in); err == nil {
			t.Fatalf("expected error for %#v", in)
		}
	}

	missing, err := st.GetItem(ctx, 404)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing item, got %#v %v", missing, err)
	}
}

func TestUpdateItemDetectsStaleVersion(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "carl", 0)

	stale := *item
	err := st.InTx(ctx, func(tx *store.Tx) error {
		loaded, err := tx.Item(item.ID)
		if err != nil {
			return err
		}
		loaded.Assignee = "fred"
		loaded.Status = workflow.StatusAssigned
		return tx.UpdateItem(loaded)
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	err = st.InTx(ctx, func(tx *store.Tx) error {
		stale.Status = workflow.StatusInProgress
		return tx.UpdateItem(&stale)
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	current, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if current.Status != workflow.StatusAssigned || current.Version != 2 || current.Assignee != "fred" {
		t.Fatalf("unexpected current item %#v", current)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "carl", 500)

	boom := errors.New("boom")
	err := st.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.AppendTransition(store.Transition{ItemID: item.ID, From: workflow.StatusNew, To: workflow.StatusAssigned, Actor: "carl"}); err != nil {
			return err
		}
		if _, err := tx.InsertNotification(store.Notification{Recipient: "fred", Kind: "assigned", Title: "t", Message: "m", ItemID: item.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	history, err := st.Transitions(ctx, item.ID)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no transitions after rollback, got %d", len(history))
	}
	if count, _ := st.UnreadCount(ctx, "fred"); count != 0 {
		t.Fatalf("expected no notifications after rollback, got %d", count)
	}
}

func TestTxItemNotFound(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := st.InTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.Item(77)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReworkCountFromLog(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "carl", 0)

	steps := [][2]workflow.Status{
		{workflow.StatusInProgress, workflow.StatusSubmitted},
		{workflow.StatusSubmitted, workflow.StatusNeedsFixes},
		{workflow.StatusNeedsFixes, workflow.StatusInProgress},
		{workflow.StatusInProgress, workflow.StatusSubmitted},
		{workflow.StatusSubmitted, workflow.StatusNeedsFixes},
	}
	err := st.InTx(ctx, func(tx *store.Tx) error {
		for _, step := range steps {
			if _, err := tx.AppendTransition(store.Transition{ItemID: item.ID, From: step[0], To: step[1], Actor: "rita", ActorRole: "reviewer"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err := st.ReworkCountFromLog(ctx, item.ID)
	if err != nil {
		t.Fatalf("ReworkCountFromLog: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	history, _ := st.Transitions(ctx, item.ID)
	if len(history) != len(steps) || history[0].To != workflow.StatusSubmitted || history[0].ActorRole != "reviewer" {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestListItemsFilters(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	first := testsupport.NewItem(t, st, "carl", 0)
	testsupport.NewItem(t, st, "dana", 0)

	err := st.InTx(ctx, func(tx *store.Tx) error {
		item, err := tx.Item(first.ID)
		if err != nil {
			return err
		}
		item.Assignee = "fred"
		item.Status = workflow.StatusAssigned
		return tx.UpdateItem(item)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := st.ListItems(ctx, store.ItemFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 items, got %d (%v)", len(all), err)
	}
	assigned, err := st.ListItems(ctx, store.ItemFilter{Statuses: []workflow.Status{workflow.StatusAssigned}, Assignee: "fred"})
	if err != nil || len(assigned) != 1 || assigned[0].ID != first.ID {
		t.Fatalf("unexpected filtered items %#v (%v)", assigned, err)
	}
	byCreator, err := st.ListItems(ctx, store.ItemFilter{Creator: "dana"})
	if err != nil || len(byCreator) != 1 {
		t.Fatalf("unexpected creator filter %#v (%v)", byCreator, err)
	}
}

func rawDB(t *testing.T, st *store.Store) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", st.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
