// Package board holds the planning graph: tasks with KPI and Requirement
// checklists, the shared agent roster, and each task's chat transcript.
//
// A Board is an immutable snapshot. Every mutation returns a new Board that
// shares unchanged *Task values with its parent, so callers can compare
// pointers to see exactly what an update touched.
package board

import (
	"sort"
)

// Board indexes tasks by id and keeps their display order.
type Board struct {
	title      string
	tasks      map[string]*Task
	order      []string
	agents     map[string]*Agent
	agentOrder []string
}

// Edge is a directed dependency arrow between two tasks.
type Edge struct {
	ID   string
	From string
	To   string
}

// New validates the definition and builds a board. Problems are reported as a
// *GraphIntegrityError.
func New(def Definition) (*Board, error) {
	def.normalize()
	if problems := def.validate(); problems != nil {
		return nil, problems
	}
	b := &Board{
		title:      def.Title,
		tasks:      make(map[string]*Task, len(def.Tasks)),
		order:      make([]string, 0, len(def.Tasks)),
		agents:     make(map[string]*Agent, len(def.Agents)),
		agentOrder: make([]string, 0, len(def.Agents)),
	}
	for i := range def.Agents {
		agent := def.Agents[i]
		b.agents[agent.ID] = &agent
		b.agentOrder = append(b.agentOrder, agent.ID)
	}
	for _, td := range def.Tasks {
		task := &Task{
			ID:           td.ID,
			Name:         td.Name,
			Description:  td.Description,
			Icon:         td.Icon,
			Completed:    td.Completed,
			Position:     td.Position,
			KPIs:         cloneItems(td.KPIs),
			Requirements: cloneItems(td.Requirements),
			Predecessors: cloneStrings(td.Predecessors),
			Successors:   cloneStrings(td.Successors),
		}
		for _, member := range td.Members {
			task.GroupMembers = append(task.GroupMembers, b.agents[member])
		}
		b.tasks[task.ID] = task
		b.order = append(b.order, task.ID)
	}
	return b, nil
}

// Title returns the board heading.
func (b *Board) Title() string {
	return b.title
}

// Task returns the task with the given id.
func (b *Board) Task(id string) (*Task, bool) {
	t, ok := b.tasks[id]
	return t, ok
}

// Tasks returns tasks in display order.
func (b *Board) Tasks() []*Task {
	out := make([]*Task, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.tasks[id])
	}
	return out
}

// IDs returns task ids in display order.
func (b *Board) IDs() []string {
	return cloneStrings(b.order)
}

// Len reports how many tasks the board holds.
func (b *Board) Len() int {
	return len(b.order)
}

// Agent returns a roster entry.
func (b *Board) Agent(id string) (*Agent, bool) {
	a, ok := b.agents[id]
	return a, ok
}

// Agents returns the roster in declaration order.
func (b *Board) Agents() []*Agent {
	out := make([]*Agent, 0, len(b.agentOrder))
	for _, id := range b.agentOrder {
		out = append(out, b.agents[id])
	}
	return out
}

// Edges emits one edge per successor reference, in display order.
func (b *Board) Edges() []Edge {
	var edges []Edge
	for _, id := range b.order {
		for _, succ := range b.tasks[id].Successors {
			edges = append(edges, Edge{ID: "e-" + id + "-" + succ, From: id, To: succ})
		}
	}
	return edges
}

// Dependents returns the ids of tasks that list id as a predecessor, sorted.
func (b *Board) Dependents(id string) []string {
	var out []string
	for _, other := range b.order {
		if contains(b.tasks[other].Predecessors, id) {
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}

// derive copies the index so one entry can be replaced. Task pointers are
// shared with the receiver.
func (b *Board) derive() *Board {
	next := &Board{
		title:      b.title,
		tasks:      make(map[string]*Task, len(b.tasks)),
		order:      b.order,
		agents:     b.agents,
		agentOrder: b.agentOrder,
	}
	for id, t := range b.tasks {
		next.tasks[id] = t
	}
	return next
}

func cloneItems(items []ChecklistItem) []ChecklistItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]ChecklistItem, len(items))
	copy(out, items)
	return out
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
