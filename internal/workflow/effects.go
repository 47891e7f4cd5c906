package workflow

// EffectKind names a side effect a transition requires.
type EffectKind string

const (
	EffectCreateBillableRecord   EffectKind = "create_billable_record"
	EffectIncrementReworkCounter EffectKind = "increment_rework_counter"
	EffectNotifyAssignee         EffectKind = "notify_assignee"
	EffectNotifyWatchers         EffectKind = "notify_watchers"
	EffectNotifyReviewers        EffectKind = "notify_reviewers"
	EffectBroadcastStatus        EffectKind = "broadcast_status"
)

// Notice identifies the notification text to compose for a notify effect.
type Notice string

const (
	NoticeAssigned      Notice = "assigned"
	NoticeNeedsFixes    Notice = "needs_fixes"
	NoticeSubmitted     Notice = "submitted"
	NoticeResubmitted   Notice = "resubmitted"
	NoticeRepublished   Notice = "republished"
	NoticeStatusChanged Notice = "status_changed"
)

// Effect is one declarative side effect.
type Effect struct {
	Kind EffectKind
	// Amount is set for EffectCreateBillableRecord.
	Amount int64
	// Recipients lists identities for notify effects addressed to people.
	Recipients []string
	// Role is the audience of EffectNotifyReviewers.
	Role   string
	Notice Notice
}

// Outcome is the result of an accepted transition.
type Outcome struct {
	From Status
	To   Status
	// Assignee is the assignee after the transition.
	Assignee string
	// ReworkCount is the counter value after effects are applied.
	ReworkCount int
	// Resubmission marks a move into submitted after at least one rework.
	Resubmission bool
	// FirstCompletion is set when this transition is the item's first entry
	// into reviewed or published.
	FirstCompletion bool
	Effects         []Effect
}

// Has reports whether the outcome carries an effect of the given kind.
func (o Outcome) Has(kind EffectKind) bool {
	for _, effect := range o.Effects {
		if effect.Kind == kind {
			return true
		}
	}
	return false
}

func (e Engine) effectsFor(item Item, to Status, actor Actor, outcome *Outcome) []Effect {
	var effects []Effect

	if to.Completed() && item.FirstCompletedAt == nil {
		outcome.FirstCompletion = true
		if item.Price > 0 && item.Assignee != "" {
			effects = append(effects, Effect{Kind: EffectCreateBillableRecord, Amount: item.Price})
		}
	}

	switch to {
	case StatusAssigned:
		if recipients := audience(actor, item.Assignee); len(recipients) > 0 {
			effects = append(effects, Effect{Kind: EffectNotifyAssignee, Recipients: recipients, Notice: NoticeAssigned})
		}
	case StatusNeedsFixes:
		outcome.ReworkCount = item.ReworkCount + 1
		effects = append(effects, Effect{Kind: EffectIncrementReworkCounter})
		if recipients := audience(actor, item.Assignee); len(recipients) > 0 {
			effects = append(effects, Effect{Kind: EffectNotifyAssignee, Recipients: recipients, Notice: NoticeNeedsFixes})
		}
	case StatusSubmitted:
		notice := NoticeSubmitted
		if item.ReworkCount > 0 {
			outcome.Resubmission = true
			notice = NoticeResubmitted
		}
		effects = append(effects, Effect{Kind: EffectNotifyReviewers, Role: e.ReviewerRole(), Notice: notice})
	case StatusPublished:
		if item.Status == StatusArchived {
			if recipients := audience(actor, item.Creator, item.Assignee); len(recipients) > 0 {
				effects = append(effects, Effect{Kind: EffectNotifyWatchers, Recipients: recipients, Notice: NoticeRepublished})
			}
		}
	}

	return append(effects, Effect{Kind: EffectBroadcastStatus, Notice: NoticeStatusChanged})
}

// audience dedupes identities and drops blanks and the acting identity.
func audience(actor Actor, identities ...string) []string {
	seen := make(map[string]struct{}, len(identities))
	var out []string
	for _, identity := range identities {
		if identity == "" || identity == actor.Identity {
			continue
		}
		if _, ok := seen[identity]; ok {
			continue
		}
		seen[identity] = struct{}{}
		out = append(out, identity)
	}
	return out
}
