package api

import (
	"context"
	"fmt"

	"templateflow/internal/store"
)

// BillingStore abstracts billable record persistence.
type BillingStore interface {
	ListBillable(ctx context.Context, filter store.BillableFilter) ([]*store.BillableRecord, error)
	AdvanceBillable(ctx context.Context, id int64, to store.BillableState) (*store.BillableRecord, error)
	VoidBillable(ctx context.Context, id int64) (*store.BillableRecord, error)
}

// BillingService exposes the billing lifecycle.
type BillingService struct {
	store BillingStore
}

// NewBillingService constructs a BillingService.
func NewBillingService(st BillingStore) *BillingService {
	return &BillingService{store: st}
}

// List returns billable records matching filter.
func (s *BillingService) List(ctx context.Context, filter store.BillableFilter) ([]Billable, error) {
	recs, err := s.store.ListBillable(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromBillables(recs), nil
}

// Advance moves a record to the named state.
func (s *BillingService) Advance(ctx context.Context, id int64, req AdvanceBillableRequest) (Billable, error) {
	state, err := store.ParseBillableState(req.State)
	if err != nil {
		return Billable{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	rec, err := s.store.AdvanceBillable(ctx, id, state)
	if err != nil {
		return Billable{}, err
	}
	return FromBillable(rec), nil
}

// Void voids a pending record.
func (s *BillingService) Void(ctx context.Context, id int64) (Billable, error) {
	rec, err := s.store.VoidBillable(ctx, id)
	if err != nil {
		return Billable{}, err
	}
	return FromBillable(rec), nil
}
