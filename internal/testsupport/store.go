package testsupport

import (
	"context"
	"testing"

	"templateflow/internal/config"
	"templateflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem creates a new work item owned by creator with the given price.
func NewItem(t testing.TB, st *store.Store, creator string, price int64) *store.Item {
	t.Helper()

	item, err := st.CreateItem(context.Background(), store.NewItem{
		TemplateRef: "tpl-" + creator,
		Title:       "Landing page",
		Creator:     creator,
		Price:       price,
	})
	if err != nil {
		t.Fatalf("store.CreateItem: %v", err)
	}
	return item
}
