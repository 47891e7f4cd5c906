package workflow

import (
	"strings"
	"time"
)

// DefaultReviewerRole is the role allowed to approve, reject and publish.
const DefaultReviewerRole = "reviewer"

// Item is the slice of a work item the engine needs to decide a transition.
type Item struct {
	ID               int64
	Status           Status
	Creator          string
	Assignee         string
	Price            int64
	ReworkCount      int
	FirstCompletedAt *time.Time
}

// Actor is the verified identity requesting a change.
type Actor struct {
	Identity string
	Role     string
}

// Capability names who may traverse an edge.
type Capability string

const (
	// CapReviewer restricts an edge to the reviewing role.
	CapReviewer Capability = "reviewer"
	// CapAssigneeOrReviewer admits the assigned identity or a reviewer.
	CapAssigneeOrReviewer Capability = "assignee_or_reviewer"
	// CapCreatorOrReviewer admits the item's creator or a reviewer.
	CapCreatorOrReviewer Capability = "creator_or_reviewer"
)

// Edge is one allowed directed status change.
type Edge struct {
	From       Status
	To         Status
	Capability Capability
}

var edgeTable = []Edge{
	{From: StatusNew, To: StatusAssigned, Capability: CapCreatorOrReviewer},
	{From: StatusAssigned, To: StatusInProgress, Capability: CapAssigneeOrReviewer},
	{From: StatusInProgress, To: StatusSubmitted, Capability: CapAssigneeOrReviewer},
	{From: StatusSubmitted, To: StatusReviewed, Capability: CapReviewer},
	{From: StatusSubmitted, To: StatusNeedsFixes, Capability: CapReviewer},
	{From: StatusNeedsFixes, To: StatusInProgress, Capability: CapAssigneeOrReviewer},
	{From: StatusReviewed, To: StatusPublished, Capability: CapReviewer},
	{From: StatusPublished, To: StatusArchived, Capability: CapReviewer},
	{From: StatusArchived, To: StatusPublished, Capability: CapReviewer},
}

type edgeKey struct {
	from Status
	to   Status
}

var edgeIndex = func() map[edgeKey]Edge {
	index := make(map[edgeKey]Edge, len(edgeTable))
	for _, edge := range edgeTable {
		index[edgeKey{from: edge.From, to: edge.To}] = edge
	}
	return index
}()

// Edges returns a copy of the allowed edge table.
func Edges() []Edge {
	out := make([]Edge, len(edgeTable))
	copy(out, edgeTable)
	return out
}

// Engine evaluates transitions against the edge table.
type Engine struct {
	reviewerRole string
}

// NewEngine returns an engine treating reviewerRole as the reviewing role.
func NewEngine(reviewerRole string) Engine {
	role := strings.ToLower(strings.TrimSpace(reviewerRole))
	if role == "" {
		role = DefaultReviewerRole
	}
	return Engine{reviewerRole: role}
}

// ReviewerRole reports the role name treated as reviewer.
func (e Engine) ReviewerRole() string {
	if e.reviewerRole == "" {
		return DefaultReviewerRole
	}
	return e.reviewerRole
}

// IsReviewer reports whether actor holds the reviewing role.
func (e Engine) IsReviewer(actor Actor) bool {
	return strings.EqualFold(strings.TrimSpace(actor.Role), e.ReviewerRole())
}

// Transition validates moving item to the requested status on behalf of actor.
// On success the Outcome lists every side effect the caller must apply; on
// failure the error is an *InvalidTransitionError and nothing may be mutated.
func (e Engine) Transition(item Item, to Status, actor Actor) (Outcome, error) {
	from := item.Status
	if !to.Valid() {
		return Outcome{}, reject(from, to, "unknown status")
	}
	if !from.Valid() {
		return Outcome{}, reject(from, to, "item has unknown status %q", string(from))
	}
	if strings.TrimSpace(actor.Identity) == "" {
		return Outcome{}, reject(from, to, "actor identity is required")
	}
	if from == to {
		return Outcome{}, reject(from, to, "item is already %s", to)
	}
	edge, ok := edgeIndex[edgeKey{from: from, to: to}]
	if !ok {
		return Outcome{}, reject(from, to, "no such edge")
	}
	if err := e.authorize(edge, item, actor); err != nil {
		return Outcome{}, err
	}
	if to == StatusAssigned && strings.TrimSpace(item.Assignee) == "" {
		return Outcome{}, reject(from, to, "item has no assignee")
	}

	outcome := Outcome{
		From:        from,
		To:          to,
		Assignee:    item.Assignee,
		ReworkCount: item.ReworkCount,
	}
	outcome.Effects = e.effectsFor(item, to, actor, &outcome)
	return outcome, nil
}

// Assign validates handing a new item to assignee, which moves it to assigned.
func (e Engine) Assign(item Item, assignee string, actor Actor) (Outcome, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return Outcome{}, reject(item.Status, StatusAssigned, "assignee is required")
	}
	if item.Status != StatusNew {
		return Outcome{}, reject(item.Status, StatusAssigned, "only new items can be assigned")
	}
	item.Assignee = assignee
	return e.Transition(item, StatusAssigned, actor)
}

// AllowedTargets lists the statuses actor may request next for item.
func (e Engine) AllowedTargets(item Item, actor Actor) []Status {
	var targets []Status
	for _, edge := range edgeTable {
		if edge.From != item.Status {
			continue
		}
		if e.authorize(edge, item, actor) != nil {
			continue
		}
		if edge.To == StatusAssigned && item.Assignee == "" {
			continue
		}
		targets = append(targets, edge.To)
	}
	return targets
}

func (e Engine) authorize(edge Edge, item Item, actor Actor) error {
	if e.IsReviewer(actor) {
		return nil
	}
	switch edge.Capability {
	case CapAssigneeOrReviewer:
		if item.Assignee != "" && actor.Identity == item.Assignee {
			return nil
		}
		return reject(edge.From, edge.To, "only the assignee or a %s may do this", e.ReviewerRole())
	case CapCreatorOrReviewer:
		if item.Creator != "" && actor.Identity == item.Creator {
			return nil
		}
		return reject(edge.From, edge.To, "only the creator or a %s may do this", e.ReviewerRole())
	default:
		return reject(edge.From, edge.To, "only a %s may do this", e.ReviewerRole())
	}
}
