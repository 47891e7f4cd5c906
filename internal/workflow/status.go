package workflow

import (
	"fmt"
	"strings"
)

// Status is the lifecycle position of a work item.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusNeedsFixes Status = "needs_fixes"
	StatusReviewed   Status = "reviewed"
	StatusPublished  Status = "published"
	StatusArchived   Status = "archived"
)

var allStatuses = []Status{
	StatusNew,
	StatusAssigned,
	StatusInProgress,
	StatusSubmitted,
	StatusNeedsFixes,
	StatusReviewed,
	StatusPublished,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a known Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return normalized, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Completed reports whether entering s counts as completing the work.
func (s Status) Completed() bool {
	return s == StatusReviewed || s == StatusPublished
}
