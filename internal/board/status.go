package board

// HasIncompleteRequirements reports whether any Requirement is still open. A
// task with no Requirements has none.
func (t *Task) HasIncompleteRequirements() bool {
	if t == nil {
		return false
	}
	for _, r := range t.Requirements {
		if !r.Completed {
			return true
		}
	}
	return false
}

// AllKPIsCompleted is true when the task has KPIs and every one is done.
func (t *Task) AllKPIsCompleted() bool {
	if t == nil || len(t.KPIs) == 0 {
		return false
	}
	for _, k := range t.KPIs {
		if !k.Completed {
			return false
		}
	}
	return true
}

// CanAdvance reports whether the Next action is available for the task. A
// task with open Requirements is locked and never advances.
func (t *Task) CanAdvance() bool {
	return t.AllKPIsCompleted() && !t.HasIncompleteRequirements() && len(t.Successors) > 0
}

// CompletedKPIs counts finished KPIs.
func (t *Task) CompletedKPIs() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, k := range t.KPIs {
		if k.Completed {
			n++
		}
	}
	return n
}
