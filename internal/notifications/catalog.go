package notifications

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"templateflow/internal/workflow"
)

// ItemRef identifies the work item a notification is about.
type ItemRef struct {
	ID          int64
	Title       string
	TemplateRef string
}

func (r ItemRef) label() string {
	if title := strings.TrimSpace(r.Title); title != "" {
		return fmt.Sprintf("%q", title)
	}
	if ref := strings.TrimSpace(r.TemplateRef); ref != "" {
		return ref
	}
	return fmt.Sprintf("item #%d", r.ID)
}

// Options carries the context the texts may mention.
type Options struct {
	Actor       string
	From        workflow.Status
	To          workflow.Status
	ReworkCount int
}

// Text is a rendered notification.
type Text struct {
	Kind    string
	Title   string
	Message string
}

var titleCaser = cases.Title(language.English)

// StatusLabel renders a status for display, e.g. "Needs Fixes".
func StatusLabel(status workflow.Status) string {
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

// Compose renders the title and message for notice about ref.
func Compose(notice workflow.Notice, ref ItemRef, opts Options) Text {
	actor := strings.TrimSpace(opts.Actor)
	if actor == "" {
		actor = "someone"
	}
	item := ref.label()

	text := Text{Kind: string(notice)}
	switch notice {
	case workflow.NoticeAssigned:
		text.Title = "New assignment"
		text.Message = fmt.Sprintf("%s assigned %s to you.", actor, item)
	case workflow.NoticeNeedsFixes:
		text.Title = "Fixes requested"
		text.Message = fmt.Sprintf("%s requested fixes on %s (round %d).", actor, item, max(opts.ReworkCount, 1))
	case workflow.NoticeSubmitted:
		text.Title = "Ready for review"
		text.Message = fmt.Sprintf("%s submitted %s for review.", actor, item)
	case workflow.NoticeResubmitted:
		text.Title = "Resubmitted for review"
		text.Message = fmt.Sprintf("%s resubmitted %s after %s.", actor, item, rounds(opts.ReworkCount))
	case workflow.NoticeRepublished:
		text.Title = "Published again"
		text.Message = fmt.Sprintf("%s republished %s from the archive.", actor, item)
	default:
		text.Kind = string(workflow.NoticeStatusChanged)
		text.Title = "Status changed"
		text.Message = fmt.Sprintf("%s moved %s from %s to %s.", actor, item, StatusLabel(opts.From), StatusLabel(opts.To))
	}
	return text
}

func rounds(n int) string {
	if n == 1 {
		return "1 round of fixes"
	}
	return fmt.Sprintf("%d rounds of fixes", n)
}
