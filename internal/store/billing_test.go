package store_test

import (
	"context"
	"errors"
	"testing"

	"templateflow/internal/store"
	"templateflow/internal/testsupport"
)

func seedBillable(t *testing.T, st *store.Store, amount int64) *store.BillableRecord {
	t.Helper()
	item := testsupport.NewItem(t, st, "carl", amount)
	var rec *store.BillableRecord
	err := st.InTx(context.Background(), func(tx *store.Tx) error {
		var err error
		rec, err = tx.InsertBillable(item.ID, "fred", amount)
		return err
	})
	if err != nil {
		t.Fatalf("insert billable: %v", err)
	}
	return rec
}

func TestAdvanceBillableLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := seedBillable(t, st, 900)

	if _, err := st.AdvanceBillable(ctx, rec.ID, store.BillablePaid); !errors.Is(err, store.ErrInvalidBillableState) {
		t.Fatalf("skipping invoiced should fail, got %v", err)
	}
	invoiced, err := st.AdvanceBillable(ctx, rec.ID, store.BillableInvoiced)
	if err != nil || invoiced.State != store.BillableInvoiced {
		t.Fatalf("invoice: %#v %v", invoiced, err)
	}
	if _, err := st.VoidBillable(ctx, rec.ID); !errors.Is(err, store.ErrInvalidBillableState) {
		t.Fatalf("voiding invoiced record should fail, got %v", err)
	}
	paid, err := st.AdvanceBillable(ctx, rec.ID, store.BillablePaid)
	if err != nil || paid.State != store.BillablePaid {
		t.Fatalf("pay: %#v %v", paid, err)
	}
	if _, err := st.AdvanceBillable(ctx, rec.ID, store.BillablePending); !errors.Is(err, store.ErrInvalidBillableState) {
		t.Fatalf("moving backwards should fail, got %v", err)
	}
	if _, err := st.AdvanceBillable(ctx, 999, store.BillableInvoiced); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnlyOneActiveBillablePerItem(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := seedBillable(t, st, 300)

	err := st.InTx(ctx, func(tx *store.Tx) error {
		_, err := tx.InsertBillable(rec.ItemID, "fred", 300)
		return err
	})
	if err == nil {
		t.Fatal("second active billable record should violate the unique index")
	}

	voided, err := st.VoidBillable(ctx, rec.ID)
	if err != nil || !voided.Voided() {
		t.Fatalf("void: %#v %v", voided, err)
	}

	err = st.InTx(ctx, func(tx *store.Tx) error {
		active, err := tx.ActiveBillable(rec.ItemID)
		if err != nil {
			return err
		}
		if active != nil {
			t.Errorf("voided record should not be active: %#v", active)
		}
		_, err = tx.InsertBillable(rec.ItemID, "fred", 300)
		return err
	})
	if err != nil {
		t.Fatalf("re-billing after void: %v", err)
	}

	active, err := st.ListBillable(ctx, store.BillableFilter{})
	if err != nil || len(active) != 1 {
		t.Fatalf("expected 1 active record, got %d (%v)", len(active), err)
	}
	all, err := st.ListBillable(ctx, store.BillableFilter{IncludeVoided: true})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 records including voided, got %d (%v)", len(all), err)
	}
	pending, err := st.ListBillable(ctx, store.BillableFilter{State: store.BillablePending, Assignee: "fred"})
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending record, got %d (%v)", len(pending), err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PendingBillable != 1 || stats.PendingAmount != 300 {
		t.Fatalf("unexpected billing stats %#v", stats)
	}
}

func TestVoidBillableReopensItemBilling(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := seedBillable(t, st, 500)

	err := st.InTx(ctx, func(tx *store.Tx) error {
		item, err := tx.Item(rec.ItemID)
		if err != nil {
			return err
		}
		completed := tx.Now()
		item.FirstCompletedAt = &completed
		return tx.UpdateItem(item)
	})
	if err != nil {
		t.Fatalf("stamp completion: %v", err)
	}
	before, err := st.GetItem(ctx, rec.ItemID)
	if err != nil || before.FirstCompletedAt == nil {
		t.Fatalf("expected stamped item, got %#v %v", before, err)
	}

	if _, err := st.VoidBillable(ctx, rec.ID); err != nil {
		t.Fatalf("void: %v", err)
	}
	after, err := st.GetItem(ctx, rec.ItemID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if after.FirstCompletedAt != nil {
		t.Fatalf("void should clear first completion, got %v", after.FirstCompletedAt)
	}
	if after.Version != before.Version+1 {
		t.Fatalf("void should bump version %d -> %d", before.Version, after.Version)
	}
}

func TestParseBillableState(t *testing.T) {
	if state, err := store.ParseBillableState(" Invoiced "); err != nil || state != store.BillableInvoiced {
		t.Fatalf("unexpected parse %q %v", state, err)
	}
	if _, err := store.ParseBillableState("refunded"); err == nil {
		t.Fatal("expected error")
	}
}
