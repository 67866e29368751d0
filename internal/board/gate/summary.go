package gate

import (
	"strconv"

	"github.com/kingrea/planboard/internal/board"
)

// State is the canvas-level status of a task.
type State string

const (
	StateLocked State = "locked"
	StateActive State = "active"
	StateDone   State = "done"
	StateIdle   State = "idle"
)

// Status summarizes one task for the canvas.
type Status struct {
	TaskID         string
	State          State
	IncompleteKPIs int
	// BlockedBy lists predecessors whose KPIs are not all complete.
	BlockedBy []string
}

// Badge returns the label drawn next to the node: the open KPI count, a check
// when everything is done, or nothing.
func (s Status) Badge() string {
	switch {
	case s.State == StateDone:
		return "✓"
	case s.IncompleteKPIs > 0:
		return strconv.Itoa(s.IncompleteKPIs)
	default:
		return ""
	}
}

// Summarize evaluates every task on the board in display order.
func Summarize(b *board.Board) []Status {
	tasks := b.Tasks()
	out := make([]Status, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, statusFor(b, t))
	}
	return out
}

// StatusOf evaluates a single task.
func StatusOf(b *board.Board, id string) (Status, bool) {
	t, ok := b.Task(id)
	if !ok {
		return Status{}, false
	}
	return statusFor(b, t), true
}

// Actionable returns tasks whose chat is open and whose KPIs are not done.
func Actionable(b *board.Board) []Status {
	var out []Status
	for _, s := range Summarize(b) {
		if s.State == StateActive {
			out = append(out, s)
		}
	}
	return out
}

func statusFor(b *board.Board, t *board.Task) Status {
	s := Status{
		TaskID:         t.ID,
		IncompleteKPIs: len(t.KPIs) - t.CompletedKPIs(),
	}
	switch {
	case HasIncompleteRequirements(t):
		s.State = StateLocked
	case AllKPIsCompleted(t):
		s.State = StateDone
	case len(t.KPIs) == 0:
		s.State = StateIdle
	default:
		s.State = StateActive
	}
	for _, pred := range t.Predecessors {
		p, ok := b.Task(pred)
		if !ok || !AllKPIsCompleted(p) {
			s.BlockedBy = append(s.BlockedBy, pred)
		}
	}
	return s
}
