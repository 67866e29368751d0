package gate

import (
	"testing"

	"github.com/kingrea/planboard/internal/board"
)

func item(id string, done bool) board.ChecklistItem {
	return board.ChecklistItem{ID: id, Name: id, Completed: done}
}

func TestHasIncompleteRequirements(t *testing.T) {
	tests := []struct {
		name string
		reqs []board.ChecklistItem
		want bool
	}{
		{name: "none", reqs: nil, want: false},
		{name: "all done", reqs: []board.ChecklistItem{item("R1", true), item("R2", true)}, want: false},
		{name: "one open", reqs: []board.ChecklistItem{item("R1", true), item("R2", false)}, want: true},
		{name: "all open", reqs: []board.ChecklistItem{item("R1", false)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &board.Task{ID: "T", Requirements: tt.reqs}
			if got := HasIncompleteRequirements(task); got != tt.want {
				t.Fatalf("HasIncompleteRequirements = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextVisibility(t *testing.T) {
	tests := []struct {
		name       string
		kpis       []board.ChecklistItem
		reqs       []board.ChecklistItem
		successors []string
		want       bool
	}{
		{name: "no kpis", kpis: nil, successors: []string{"T2"}, want: false},
		{name: "partial", kpis: []board.ChecklistItem{item("K1", true), item("K2", false)}, successors: []string{"T2"}, want: false},
		{name: "complete no successor", kpis: []board.ChecklistItem{item("K1", true)}, successors: nil, want: false},
		{name: "complete with successor", kpis: []board.ChecklistItem{item("K1", true)}, successors: []string{"T2", "T3"}, want: true},
		{name: "complete but locked", kpis: []board.ChecklistItem{item("K1", true)}, reqs: []board.ChecklistItem{item("R1", false)}, successors: []string{"T2"}, want: false},
		{name: "complete with cleared requirements", kpis: []board.ChecklistItem{item("K1", true)}, reqs: []board.ChecklistItem{item("R1", true)}, successors: []string{"T2"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &board.Task{ID: "T1", KPIs: tt.kpis, Requirements: tt.reqs, Successors: tt.successors}
			if got := NextVisible(task); got != tt.want {
				t.Fatalf("NextVisible(task) = %v, want %v", got, tt.want)
			}
			panel := Evaluate(task)
			if panel.NextVisible != tt.want {
				t.Fatalf("NextVisible = %v, want %v", panel.NextVisible, tt.want)
			}
			if tt.want && panel.NextTaskID != tt.successors[0] {
				t.Fatalf("NextTaskID = %s, want first successor %s", panel.NextTaskID, tt.successors[0])
			}
		})
	}
}

func TestEvaluateShowsRequirementsAndBlocksChat(t *testing.T) {
	task := &board.Task{
		ID:           "T2",
		KPIs:         []board.ChecklistItem{item("K4", true)},
		Requirements: []board.ChecklistItem{item("R1", false)},
		Successors:   []string{"T7"},
	}
	panel := Evaluate(task)
	if panel.Mode != ModeRequirements || panel.Title != "Requirements" {
		t.Fatalf("expected requirements panel, got %s/%s", panel.Mode, panel.Title)
	}
	if !panel.ChatBlocked {
		t.Fatalf("chat must be blocked while requirements are open")
	}
	if panel.NextVisible {
		t.Fatalf("next must stay hidden in requirements mode")
	}
	if len(panel.Items) != 1 || panel.Items[0].ID != "R1" {
		t.Fatalf("unexpected items: %+v", panel.Items)
	}
}

func TestEvaluateKPIMode(t *testing.T) {
	task := &board.Task{
		ID:           "T3",
		KPIs:         []board.ChecklistItem{item("K6", false), item("K7", false)},
		Requirements: []board.ChecklistItem{item("R2", true)},
	}
	panel := Evaluate(task)
	if panel.Mode != ModeKPI || panel.Title != "KPI" || panel.ChipLabel != "KPI" {
		t.Fatalf("expected KPI panel, got %+v", panel)
	}
	if panel.ChatBlocked {
		t.Fatalf("chat should be open")
	}
	if panel.EmptyHint != "" {
		t.Fatalf("populated panel should not carry a hint")
	}
}

func TestEvaluateEmptyTask(t *testing.T) {
	panel := Evaluate(&board.Task{ID: "T9", Successors: []string{"T1"}})
	if panel.HasItems() {
		t.Fatalf("expected no items")
	}
	if panel.NextVisible {
		t.Fatalf("next must be hidden without KPIs")
	}
	if panel.EmptyHint != "Click a task to see its KPIs." {
		t.Fatalf("unexpected hint %q", panel.EmptyHint)
	}
	if nilPanel := Evaluate(nil); nilPanel.HasItems() || nilPanel.ChatBlocked {
		t.Fatalf("nil task should produce an empty open panel")
	}
}

func TestClassifyEvidence(t *testing.T) {
	cases := map[string]EvidenceKind{
		"":                                EvidenceNone,
		"signed off by Helen":             EvidenceText,
		"https://cdn.example.com/a.PNG":   EvidenceImage,
		"http://cdn.example.com/demo.mp4": EvidenceVideo,
		"https://figma.com/file/abc":      EvidenceLink,
		"ftp://example.com/a.png":         EvidenceText,
	}
	for input, want := range cases {
		if got := ClassifyEvidence(input); got != want {
			t.Fatalf("ClassifyEvidence(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestSummarizeSeedBoard(t *testing.T) {
	b, err := board.Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	statuses := Summarize(b)
	if len(statuses) != 7 {
		t.Fatalf("expected 7 statuses, got %d", len(statuses))
	}
	want := map[string]State{
		"T1": StateActive,
		"T2": StateLocked,
		"T3": StateActive,
		"T4": StateLocked,
		"T5": StateLocked,
		"T6": StateActive,
		"T7": StateLocked,
	}
	for _, s := range statuses {
		if s.State != want[s.TaskID] {
			t.Fatalf("%s: state %s, want %s", s.TaskID, s.State, want[s.TaskID])
		}
		if s.Badge() != "2" {
			t.Fatalf("%s: badge %q, want 2", s.TaskID, s.Badge())
		}
	}
	t7, _ := StatusOf(b, "T7")
	if len(t7.BlockedBy) != 4 {
		t.Fatalf("T7 blocked by %v", t7.BlockedBy)
	}

	actionable := Actionable(b)
	if len(actionable) != 3 || actionable[0].TaskID != "T1" {
		t.Fatalf("unexpected actionable set: %+v", actionable)
	}

	b, _ = b.ApplyUpdate("T1", "K1", board.Complete(""))
	b, _ = b.ApplyUpdate("T1", "K2", board.Complete(""))
	t1, _ := StatusOf(b, "T1")
	if t1.State != StateDone || t1.Badge() != "✓" {
		t.Fatalf("T1 should be done, got %+v", t1)
	}
	t2, _ := StatusOf(b, "T2")
	if len(t2.BlockedBy) != 0 {
		t.Fatalf("T2 should no longer be blocked by T1: %v", t2.BlockedBy)
	}
	if t2.State != StateLocked {
		t.Fatalf("T2 requirements stay open until Next is taken, got %s", t2.State)
	}
}
