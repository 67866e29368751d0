package board

import (
	"fmt"
	"strings"
)

// Definition is the declarative form of a board, as loaded from YAML.
type Definition struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	Agents      []Agent   `yaml:"agents"`
	Tasks       []TaskDef `yaml:"tasks"`
}

// TaskDef declares one task. Members lists roster agent ids.
type TaskDef struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description,omitempty"`
	Icon         string          `yaml:"icon,omitempty"`
	Completed    bool            `yaml:"completed,omitempty"`
	Position     Position        `yaml:"position"`
	KPIs         []ChecklistItem `yaml:"kpis,omitempty"`
	Requirements []ChecklistItem `yaml:"requirements,omitempty"`
	Predecessors []string        `yaml:"predecessors,omitempty"`
	Successors   []string        `yaml:"successors,omitempty"`
	Members      []string        `yaml:"members,omitempty"`
}

func (def *Definition) normalize() {
	for i := range def.Agents {
		a := &def.Agents[i]
		a.ID = strings.TrimSpace(a.ID)
		a.Name = strings.TrimSpace(a.Name)
		a.Endpoint = strings.TrimSpace(a.Endpoint)
	}
	for i := range def.Tasks {
		t := &def.Tasks[i]
		t.ID = strings.TrimSpace(t.ID)
		t.Name = strings.TrimSpace(t.Name)
		t.Predecessors = trimAll(t.Predecessors)
		t.Successors = trimAll(t.Successors)
		t.Members = trimAll(t.Members)
	}
}

// validate checks the definition and returns every problem at once.
func (def Definition) validate() *GraphIntegrityError {
	problems := &GraphIntegrityError{}
	agents := make(map[string]struct{}, len(def.Agents))
	for i, a := range def.Agents {
		path := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			problems.add(path, "id is required")
			continue
		}
		if _, dup := agents[a.ID]; dup {
			problems.add(path, "duplicate agent id %s", a.ID)
		}
		agents[a.ID] = struct{}{}
	}

	tasks := make(map[string]TaskDef, len(def.Tasks))
	for i, t := range def.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if t.ID == "" {
			problems.add(path, "id is required")
			continue
		}
		if _, dup := tasks[t.ID]; dup {
			problems.add(path, "duplicate task id %s", t.ID)
			continue
		}
		tasks[t.ID] = t
		checkItems(problems, path+".kpis", t.KPIs)
		checkItems(problems, path+".requirements", t.Requirements)
		for _, member := range t.Members {
			if _, ok := agents[member]; !ok {
				problems.add(path+".members", "unknown agent %s", member)
			}
		}
	}

	for _, t := range def.Tasks {
		if t.ID == "" {
			continue
		}
		path := "tasks." + t.ID
		for _, succ := range t.Successors {
			next, ok := tasks[succ]
			if !ok {
				problems.add(path+".successors", "unknown task %s", succ)
				continue
			}
			if !contains(next.Predecessors, t.ID) {
				problems.add(path+".successors", "%s does not list %s as predecessor", succ, t.ID)
			}
		}
		for _, pred := range t.Predecessors {
			prev, ok := tasks[pred]
			if !ok {
				problems.add(path+".predecessors", "unknown task %s", pred)
				continue
			}
			if !contains(prev.Successors, t.ID) {
				problems.add(path+".predecessors", "%s does not list %s as successor", pred, t.ID)
			}
		}
	}

	if !problems.hasProblems() {
		if cycle := findCycle(def.Tasks); len(cycle) > 0 {
			problems.add("tasks", "circular dependency: %s", strings.Join(cycle, " -> "))
		}
	}
	if problems.hasProblems() {
		return problems
	}
	return nil
}

func checkItems(problems *GraphIntegrityError, path string, items []ChecklistItem) {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			problems.add(fmt.Sprintf("%s[%d]", path, i), "id is required")
			continue
		}
		if _, dup := seen[id]; dup {
			problems.add(fmt.Sprintf("%s[%d]", path, i), "duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

// findCycle runs a DFS over successor edges and returns the first cycle found.
func findCycle(tasks []TaskDef) []string {
	const (
		white = iota
		gray
		black
	)
	succ := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		succ[t.ID] = t.Successors
	}
	color := make(map[string]int, len(tasks))
	var stack []string
	var cycle []string
	var visit func(string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range succ[id] {
			switch color[next] {
			case gray:
				for i, s := range stack {
					if s == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}
	for _, t := range tasks {
		if color[t.ID] == white && visit(t.ID) {
			return cycle
		}
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
