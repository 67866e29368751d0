package responder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/planboard/internal/board"
)

func TestDefaultTableMatchesExactPhrases(t *testing.T) {
	table := DefaultTable()
	require.Equal(t, 2, table.Len())

	trig, ok := table.Match("  " + LuckyDrawPhrase + "\n")
	require.True(t, ok)
	assert.Equal(t, "build_lucky_draw_website", trig.Effect.Workflow)
	assert.Len(t, trig.Effect.Steps, 5)
	assert.Equal(t, 2*time.Second, trig.Effect.Steps[0].Delay)
	assert.Equal(t, FirstKPI, trig.Effect.CompleteKPI)
	assert.Empty(t, trig.Effect.Notify)
	assert.Equal(t, 1, trig.Ordinal())

	trig, ok = table.Match(WhatsAppPhrase)
	require.True(t, ok)
	assert.Equal(t, "send_whatsapp_message", trig.Effect.Workflow)
	assert.Len(t, trig.Effect.Steps, 4)
	assert.Equal(t, 3*time.Second, trig.Effect.Steps[3].Delay)
	assert.Equal(t, "send_whatsapp", trig.Effect.Notify)
	assert.Equal(t, 2, trig.Ordinal())
	assert.Equal(t, []string{"send_whatsapp"}, table.Notifications())
}

func TestNearMissesDoNotTrigger(t *testing.T) {
	table := DefaultTable()
	for _, input := range []string{
		strings.ToLower(LuckyDrawPhrase),
		strings.TrimSuffix(LuckyDrawPhrase, "?"),
		"hello",
		"",
	} {
		_, ok := table.Match(input)
		assert.False(t, ok, "input %q should not trigger", input)
	}
}

func TestFirstMatchWins(t *testing.T) {
	table := NewTable(
		Trigger{Name: "a", Match: PredicateFunc(func(s string) bool { return strings.HasPrefix(s, "go") })},
		Trigger{Name: "b", Match: ExactPhrase("go")},
		Trigger{Name: "skipped"},
	)
	assert.Equal(t, []string{"a", "b"}, table.Names())
	trig, ok := table.Match("go")
	require.True(t, ok)
	assert.Equal(t, "a", trig.Name)

	var empty *Table
	_, ok = empty.Match("go")
	assert.False(t, ok)
}

func TestKPISelector(t *testing.T) {
	task := &board.Task{KPIs: []board.ChecklistItem{{ID: "K1"}, {ID: "K2"}}}
	id, ok := FirstKPI.Resolve(task)
	require.True(t, ok)
	assert.Equal(t, "K1", id)

	id, ok = KPISelector("K2").Resolve(task)
	require.True(t, ok)
	assert.Equal(t, "K2", id)

	_, ok = KPISelector("K9").Resolve(task)
	assert.False(t, ok)
	_, ok = FirstKPI.Resolve(&board.Task{})
	assert.False(t, ok)
	_, ok = KPISelector("").Resolve(task)
	assert.False(t, ok)
}

const sampleTriggers = `
triggers:
  - name: deploy
    phrase: "ship it"
    step_delay: 10ms
    complete_kpi: K2
    steps:
      - "Building…"
      - text: "Deployed."
        delay: 1ms
  - phrase: "ping"
    workflow: ping_pong
    notify: pager
`

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(sampleTriggers))
	require.NoError(t, err)
	require.Equal(t, []string{"deploy", "ping_pong"}, table.Names())

	trig, ok := table.Match("ship it")
	require.True(t, ok)
	assert.Equal(t, "deploy", trig.Effect.Workflow)
	assert.Equal(t, KPISelector("K2"), trig.Effect.CompleteKPI)
	require.Len(t, trig.Effect.Steps, 2)
	assert.Equal(t, Step{Text: "Building…", Delay: 10 * time.Millisecond}, trig.Effect.Steps[0])
	assert.Equal(t, Step{Text: "Deployed.", Delay: time.Millisecond}, trig.Effect.Steps[1])

	trig, ok = table.Match("ping")
	require.True(t, ok)
	assert.Equal(t, "pager", trig.Effect.Notify)
	assert.Empty(t, trig.Effect.Steps)
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "  ", want: "empty"},
		{name: "missing phrase", body: "triggers:\n  - name: a\n", want: "phrase is required"},
		{name: "missing name", body: "triggers:\n  - phrase: a\n", want: "name is required"},
		{name: "duplicate", body: "triggers:\n  - {name: a, phrase: x}\n  - {name: a, phrase: y}\n", want: "duplicate name a"},
		{name: "blank step", body: "triggers:\n  - name: a\n    phrase: x\n    steps: [\"\"]\n", want: "steps[0]"},
		{name: "negative delay", body: "triggers:\n  - name: a\n    phrase: x\n    step_delay: -1s\n", want: "step_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTriggers), 0o644))
	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("triggers:\n  - {name: a, phrase: x}\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(sampleTriggers), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-w.Updates():
			if r.Err != nil || r.Table.Len() != 2 {
				// partial writes can surface as intermediate events
				continue
			}
			assert.Equal(t, []string{"deploy", "ping_pong"}, r.Table.Names())
			return
		case <-deadline:
			t.Fatal("watcher did not report the rewritten table")
		}
	}
}

func TestWelcomeListsKPIs(t *testing.T) {
	agent := &board.Agent{ID: "A1", Name: "Product Owner Agent"}
	task := &board.Task{
		ID:   "T1",
		Name: "Define Scope",
		KPIs: []board.ChecklistItem{{ID: "K1", Name: "Scope doc", Completed: true}, {ID: "K2", Name: "Sign-off"}},
	}
	msg := Welcome(agent, task, time.Unix(0, 0))
	assert.Equal(t, WelcomeID, msg.ID)
	assert.Equal(t, "A1", msg.SenderID)
	text := msg.Text()
	assert.Contains(t, text, "I'm Product Owner Agent")
	assert.Contains(t, text, `"Define Scope"`)
	assert.Contains(t, text, "• Scope doc — Completed")
	assert.Contains(t, text, "• Sign-off — Pending")
}

func TestStepMessageMetadata(t *testing.T) {
	trig, _ := DefaultTable().Match(WhatsAppPhrase)
	now := time.UnixMilli(1700000000000)
	msg := StepMessage(trig, 2, nil, "T6", now)
	assert.Equal(t, "workflow2-1700000000000-2", msg.ID)
	assert.Equal(t, DefaultSender.Name, msg.SenderLabel)
	assert.Equal(t, "📤 Sending WhatsApp message via API…", msg.Text())
	assert.Equal(t, "workflow_step", msg.Metadata["kind"])
	assert.Equal(t, "send_whatsapp_message", msg.Metadata["workflow"])
	assert.Equal(t, 2, msg.Metadata["stepIndex"])
}

func TestFallbackNamesTask(t *testing.T) {
	msg := Fallback(&board.Agent{ID: "A2", Name: "UX"}, &board.Task{ID: "T2", Name: "Wireframes"}, time.Now())
	assert.Equal(t, board.SenderAgent, msg.SenderType)
	assert.Equal(t, "T2", msg.TaskID)
	assert.Contains(t, msg.Text(), `"Wireframes"`)
}
