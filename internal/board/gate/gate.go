// Package gate decides what the board shows for a task: which checklist is
// presented, whether chat is unlocked, and whether Next is offered. All
// functions are pure and are re-run on every render.
package gate

import (
	"strings"

	"github.com/kingrea/planboard/internal/board"
)

// Mode identifies which checklist the panel shows.
type Mode string

const (
	ModeRequirements Mode = "requirements"
	ModeKPI          Mode = "kpi"
)

// Panel is the evaluated checklist view for one task.
type Panel struct {
	TaskID      string
	Mode        Mode
	Title       string
	ChipLabel   string
	Items       []board.ChecklistItem
	ChatBlocked bool
	NextVisible bool
	NextTaskID  string
	EmptyHint   string
}

// HasItems reports whether the panel has anything to list.
func (p Panel) HasItems() bool {
	return len(p.Items) > 0
}

// HasIncompleteRequirements is true iff the task has Requirements and at least
// one of them is open.
func HasIncompleteRequirements(t *board.Task) bool {
	return t.HasIncompleteRequirements()
}

// AllKPIsCompleted is true iff the task has KPIs and all are done.
func AllKPIsCompleted(t *board.Task) bool {
	return t.AllKPIsCompleted()
}

// NextVisible is true iff the Requirements are clear, every KPI is done and
// the task has a successor.
func NextVisible(t *board.Task) bool {
	return t.CanAdvance()
}

// Evaluate builds the panel for t. A nil task yields an empty KPI panel.
func Evaluate(t *board.Task) Panel {
	if t == nil {
		return Panel{Mode: ModeKPI, Title: "KPI", ChipLabel: "KPI", EmptyHint: emptyHint(ModeKPI)}
	}
	p := Panel{TaskID: t.ID}
	if HasIncompleteRequirements(t) {
		p.Mode = ModeRequirements
		p.Title = "Requirements"
		p.ChipLabel = "Requirement"
		p.Items = t.Requirements
		p.ChatBlocked = true
	} else {
		p.Mode = ModeKPI
		p.Title = "KPI"
		p.ChipLabel = "KPI"
		p.Items = t.KPIs
	}
	if NextVisible(t) {
		p.NextVisible = true
		p.NextTaskID = t.Successors[0]
	}
	if !p.HasItems() {
		p.EmptyHint = emptyHint(p.Mode)
	}
	return p
}

func emptyHint(mode Mode) string {
	if mode == ModeRequirements {
		return "Click a task to see its requirements."
	}
	return "Click a task to see its KPIs."
}

// EvidenceKind classifies an evidence string for rendering.
type EvidenceKind string

const (
	EvidenceNone  EvidenceKind = "none"
	EvidenceImage EvidenceKind = "image"
	EvidenceVideo EvidenceKind = "video"
	EvidenceLink  EvidenceKind = "link"
	EvidenceText  EvidenceKind = "text"
)

var (
	imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}
	videoSuffixes = []string{".mp4", ".webm", ".ogg"}
)

// ClassifyEvidence mirrors the sidebar's rendering rules: URLs are images,
// videos or plain links by extension, anything else is free text.
func ClassifyEvidence(evidence string) EvidenceKind {
	if evidence == "" {
		return EvidenceNone
	}
	if !strings.HasPrefix(evidence, "http://") && !strings.HasPrefix(evidence, "https://") {
		return EvidenceText
	}
	lower := strings.ToLower(evidence)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return EvidenceImage
		}
	}
	for _, suffix := range videoSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return EvidenceVideo
		}
	}
	return EvidenceLink
}
