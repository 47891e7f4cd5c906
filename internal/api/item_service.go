package api

import (
	"context"
	"fmt"
	"strings"

	"templateflow/internal/dispatch"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// ItemStore abstracts the item persistence the API reads and creates.
type ItemStore interface {
	CreateItem(ctx context.Context, in store.NewItem) (*store.Item, error)
	GetItem(ctx context.Context, id int64) (*store.Item, error)
	ListItems(ctx context.Context, filter store.ItemFilter) ([]*store.Item, error)
	Transitions(ctx context.Context, itemID int64) ([]store.Transition, error)
	ReworkCountFromLog(ctx context.Context, itemID int64) (int, error)
}

// Dispatcher executes workflow transitions.
type Dispatcher interface {
	Engine() workflow.Engine
	Transition(ctx context.Context, itemID int64, to workflow.Status, actor workflow.Actor) (*dispatch.Result, error)
	Assign(ctx context.Context, itemID int64, assignee string, actor workflow.Actor) (*dispatch.Result, error)
}

// ItemService exposes item operations returning API DTOs.
type ItemService struct {
	store      ItemStore
	dispatcher Dispatcher
}

// NewItemService constructs an ItemService.
func NewItemService(st ItemStore, d Dispatcher) *ItemService {
	return &ItemService{store: st, dispatcher: d}
}

// Create registers a new item owned by actor.
func (s *ItemService) Create(ctx context.Context, actor workflow.Actor, req CreateItemRequest) (Item, error) {
	if strings.TrimSpace(req.TemplateRef) == "" {
		return Item{}, fmt.Errorf("%w: templateRef is required", ErrInvalidRequest)
	}
	if req.Price < 0 {
		return Item{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidRequest)
	}
	item, err := s.store.CreateItem(ctx, store.NewItem{
		TemplateRef: req.TemplateRef,
		Title:       req.Title,
		Creator:     actor.Identity,
		Price:       req.Price,
	})
	if err != nil {
		return Item{}, err
	}
	return s.view(item, actor), nil
}

// List returns items matching filter.
func (s *ItemService) List(ctx context.Context, filter store.ItemFilter) ([]Item, error) {
	items, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// Describe fetches one item with the statuses actor may move it to.
func (s *ItemService) Describe(ctx context.Context, id int64, actor workflow.Actor) (Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if item == nil {
		return Item{}, fmt.Errorf("item %d: %w", id, store.ErrNotFound)
	}
	return s.view(item, actor), nil
}

// History returns the item's transition log.
func (s *ItemService) History(ctx context.Context, id int64) (HistoryResponse, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return HistoryResponse{}, err
	}
	if item == nil {
		return HistoryResponse{}, fmt.Errorf("item %d: %w", id, store.ErrNotFound)
	}
	log, err := s.store.Transitions(ctx, id)
	if err != nil {
		return HistoryResponse{}, err
	}
	rework, err := s.store.ReworkCountFromLog(ctx, id)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{ItemID: id, Transitions: FromTransitions(log), ReworkCount: rework}, nil
}

// Transition moves an item to the requested status.
func (s *ItemService) Transition(ctx context.Context, id int64, actor workflow.Actor, req TransitionRequest) (TransitionResponse, error) {
	to, err := workflow.ParseStatus(req.Status)
	if err != nil {
		return TransitionResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	res, err := s.dispatcher.Transition(ctx, id, to, actor)
	if err != nil {
		return TransitionResponse{}, err
	}
	return s.result(res, actor), nil
}

// Assign hands a new item to an assignee.
func (s *ItemService) Assign(ctx context.Context, id int64, actor workflow.Actor, req AssignRequest) (TransitionResponse, error) {
	if strings.TrimSpace(req.Assignee) == "" {
		return TransitionResponse{}, fmt.Errorf("%w: assignee is required", ErrInvalidRequest)
	}
	res, err := s.dispatcher.Assign(ctx, id, req.Assignee, actor)
	if err != nil {
		return TransitionResponse{}, err
	}
	return s.result(res, actor), nil
}

func (s *ItemService) result(res *dispatch.Result, actor workflow.Actor) TransitionResponse {
	out := TransitionResponse{
		NewStatus: string(res.NewStatus()),
		Item:      s.view(res.Item, actor),
		Delivered: res.Report.Delivered,
	}
	if res.Billable != nil {
		b := FromBillable(res.Billable)
		out.Billable = &b
	}
	return out
}

func (s *ItemService) view(item *store.Item, actor workflow.Actor) Item {
	dto := FromItem(item)
	if s.dispatcher != nil && actor.Identity != "" {
		dto.AllowedTargets = statusStrings(s.dispatcher.Engine().AllowedTargets(item.Snapshot(), actor))
	}
	return dto
}
