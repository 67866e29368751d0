package board

import (
	"fmt"
	"sort"
	"strings"
)

// RequirementStrategy decides what advancing into a task does to its
// Requirements list.
type RequirementStrategy string

const (
	// ClearRequirements empties the list, discarding the item metadata.
	ClearRequirements RequirementStrategy = "clear"
	// CompleteRequirements keeps every item and marks it completed.
	CompleteRequirements RequirementStrategy = "complete"
)

// ParseRequirementStrategy maps a config value to a strategy. Empty selects
// ClearRequirements.
func ParseRequirementStrategy(value string) (RequirementStrategy, error) {
	switch RequirementStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ClearRequirements:
		return ClearRequirements, nil
	case CompleteRequirements:
		return CompleteRequirements, nil
	default:
		return "", fmt.Errorf("board: unknown requirement strategy %q", value)
	}
}

func (s RequirementStrategy) apply(items []ChecklistItem) []ChecklistItem {
	if s != CompleteRequirements {
		return []ChecklistItem{}
	}
	out := make([]ChecklistItem, len(items))
	for i, item := range items {
		item.Completed = true
		out[i] = item
	}
	return out
}

// ApplyUpdate merges patch into one KPI of one task. Requirements are never
// touched. On a lookup miss the receiver is returned with an ErrNotFound.
func (b *Board) ApplyUpdate(taskID, kpiID string, patch ItemPatch) (*Board, error) {
	task, ok := b.tasks[taskID]
	if !ok {
		return b, notFound("task", taskID)
	}
	idx := -1
	for i, k := range task.KPIs {
		if k.ID == kpiID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return b, notFound("kpi", taskID+"/"+kpiID)
	}
	updated := task.clone()
	updated.KPIs = cloneItems(task.KPIs)
	updated.KPIs[idx] = patch.apply(updated.KPIs[idx])
	next := b.derive()
	next.tasks[taskID] = updated
	return next, nil
}

// Advance performs the Next action from fromID: the first successor becomes
// the current task and its Requirements are rewritten by strategy. Other
// successors are left untouched.
func (b *Board) Advance(fromID string, strategy RequirementStrategy) (*Board, string, error) {
	task, ok := b.tasks[fromID]
	if !ok {
		return b, "", notFound("task", fromID)
	}
	if len(task.Successors) == 0 {
		return b, "", fmt.Errorf("%w: %s", ErrNoSuccessor, fromID)
	}
	if task.HasIncompleteRequirements() {
		return b, "", fmt.Errorf("%w: %s has open requirements", ErrNextUnavailable, fromID)
	}
	if !task.AllKPIsCompleted() {
		return b, "", fmt.Errorf("%w: %s has %d/%d KPIs complete", ErrNextUnavailable, fromID, task.CompletedKPIs(), len(task.KPIs))
	}
	nextID := task.Successors[0]
	succ, ok := b.tasks[nextID]
	if !ok {
		return b, "", notFound("task", nextID)
	}
	updated := succ.clone()
	updated.Requirements = strategy.apply(succ.Requirements)
	next := b.derive()
	next.tasks[nextID] = updated
	return next, nextID, nil
}

// AppendMessage adds msg to the task transcript. Messages are ordered by Seq;
// equal sequence numbers keep arrival order.
func (b *Board) AppendMessage(taskID string, msg Message) (*Board, error) {
	task, ok := b.tasks[taskID]
	if !ok {
		return b, notFound("task", taskID)
	}
	if msg.TaskID == "" {
		msg.TaskID = taskID
	}
	updated := task.clone()
	transcript := make([]Message, 0, len(task.Discussion)+1)
	transcript = append(transcript, task.Discussion...)
	pos := sort.Search(len(transcript), func(i int) bool {
		return transcript[i].Seq > msg.Seq
	})
	transcript = append(transcript, Message{})
	copy(transcript[pos+1:], transcript[pos:])
	transcript[pos] = msg
	updated.Discussion = transcript
	next := b.derive()
	next.tasks[taskID] = updated
	return next, nil
}

// AddTask appends a free-standing task to the canvas. Edges are not created.
func (b *Board) AddTask(t Task) (*Board, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return b, fmt.Errorf("board: task id is required")
	}
	if _, exists := b.tasks[t.ID]; exists {
		return b, fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	t.Predecessors = nil
	t.Successors = nil
	next := b.derive()
	next.order = append(cloneStrings(b.order), t.ID)
	next.tasks[t.ID] = &t
	return next, nil
}

// RemoveTask deletes a task and scrubs every reference to it so the remaining
// graph stays consistent.
func (b *Board) RemoveTask(id string) (*Board, error) {
	if _, ok := b.tasks[id]; !ok {
		return b, notFound("task", id)
	}
	next := b.derive()
	delete(next.tasks, id)
	next.order = make([]string, 0, len(b.order)-1)
	for _, other := range b.order {
		if other == id {
			continue
		}
		next.order = append(next.order, other)
		t := b.tasks[other]
		if !contains(t.Predecessors, id) && !contains(t.Successors, id) {
			continue
		}
		updated := t.clone()
		updated.Predecessors = without(t.Predecessors, id)
		updated.Successors = without(t.Successors, id)
		next.tasks[other] = updated
	}
	return next, nil
}

// NextTaskID suggests an id for a task created on the canvas.
func (b *Board) NextTaskID() string {
	for n := len(b.order) + 1; ; n++ {
		id := fmt.Sprintf("T%d", n)
		if _, taken := b.tasks[id]; !taken {
			return id
		}
	}
}

func without(values []string, drop string) []string {
	var out []string
	for _, v := range values {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
