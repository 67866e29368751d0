package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/bridge"
	"github.com/kingrea/planboard/internal/logbook"
	"github.com/kingrea/planboard/internal/responder"
	"github.com/kingrea/planboard/internal/session"
)

type stubAsker struct {
	replies  map[string]string
	notified []string
}

func (s *stubAsker) Ask(_ context.Context, agent *board.Agent, _ string) (string, error) {
	reply, ok := s.replies[agent.ID]
	if !ok {
		return "", errors.New("no reply configured")
	}
	return reply, nil
}

func (s *stubAsker) Notify(_ context.Context, url string) error {
	s.notified = append(s.notified, url)
	return nil
}

func newTestApp(t *testing.T, endpoints map[string]string, opts ...AppOption) *App {
	t.Helper()
	b, err := board.New(board.SeedDefinition().WithEndpoints(endpoints))
	if err != nil {
		t.Fatalf("seed board: %v", err)
	}
	sess, err := session.New(b,
		session.WithDelayScale(0),
		session.WithNotifyEndpoints(map[string]string{"send_whatsapp": "http://notify.test/whatsapp"}),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	app, err := NewApp(sess, opts...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	model, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(*App)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, app *App, keys ...string) (*App, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = app.Update(key(k))
		app = model.(*App)
	}
	return app, cmd
}

func sendText(t *testing.T, app *App, text string) *App {
	t.Helper()
	app, _ = press(t, app, "tab")
	if app.focus != focusChat {
		t.Fatalf("expected chat focus, status %q", app.statusMsg)
	}
	app.input.SetValue(text)
	model, cmd := app.Update(key("enter"))
	return runCommands(t, model, cmd)
}

func transcriptTexts(app *App) []string {
	var out []string
	for _, msg := range app.session.Transcript() {
		out = append(out, msg.Text())
	}
	return out
}

func TestNewAppSelectsFirstTask(t *testing.T) {
	app := newTestApp(t, nil)
	if got := app.session.SelectedID(); got != "T1" {
		t.Fatalf("expected T1 selected, got %q", got)
	}
	texts := transcriptTexts(app)
	if len(texts) != 1 || !strings.Contains(texts[0], "Creative Agent") {
		t.Fatalf("expected welcome from Creative Agent, got %v", texts)
	}
	if len(app.tasks.Items()) != app.session.Board().Len() {
		t.Fatalf("list has %d items, board has %d", len(app.tasks.Items()), app.session.Board().Len())
	}
}

func TestTriggerPlaysStepsAndCompletesKPI(t *testing.T) {
	asker := &stubAsker{}
	app := newTestApp(t, nil, WithAsker(asker))
	app = sendText(t, app, responder.WhatsAppPhrase)

	texts := transcriptTexts(app)
	// welcome, user, four scripted steps
	if len(texts) != 6 {
		t.Fatalf("expected 6 messages, got %d: %v", len(texts), texts)
	}
	task, _ := app.session.Selected()
	if kpi, _ := task.KPI("K1"); !kpi.Completed {
		t.Fatalf("expected K1 completed")
	}
	if len(asker.notified) != 1 || asker.notified[0] != "http://notify.test/whatsapp" {
		t.Fatalf("expected one notify call, got %v", asker.notified)
	}
	if app.input.Value() != "" {
		t.Fatalf("input should be cleared after send")
	}
}

func TestLeavingTaskDropsPendingSteps(t *testing.T) {
	app := newTestApp(t, nil)
	app, _ = press(t, app, "tab")
	app.input.SetValue(responder.LuckyDrawPhrase)
	model, pending := app.Update(key("enter"))
	app = model.(*App)

	app, _ = press(t, app, "esc", "down")
	if app.session.SelectedID() == "T1" {
		t.Fatalf("expected selection to move off T1")
	}
	app = runCommands(t, app, pending)

	b := app.session.Board()
	t1, _ := b.Task("T1")
	if len(t1.Discussion) != 2 {
		t.Fatalf("expected only welcome and user message on T1, got %d", len(t1.Discussion))
	}
}

func TestAgentRepliesLandInTranscript(t *testing.T) {
	asker := &stubAsker{replies: map[string]string{"A1": "Flow drafted."}}
	app := newTestApp(t, map[string]string{"A1": "http://agents.test/a1"}, WithAsker(asker))
	app = sendText(t, app, "what's the plan?")

	texts := transcriptTexts(app)
	if texts[len(texts)-1] != "Flow drafted." {
		t.Fatalf("expected agent reply last, got %v", texts)
	}
}

func TestAgentErrorsRenderAsMessages(t *testing.T) {
	app := newTestApp(t, map[string]string{"A1": "http://agents.test/a1"}, WithAsker(&stubAsker{}))
	app = sendText(t, app, "hello")

	texts := transcriptTexts(app)
	if last := texts[len(texts)-1]; !strings.HasPrefix(last, "⚠️ Creative Agent API error:") {
		t.Fatalf("expected error message, got %q", last)
	}
}

func TestMissingTransportStillAnswersTurn(t *testing.T) {
	app := newTestApp(t, map[string]string{"A1": "http://agents.test/a1"})
	app = sendText(t, app, "hello")

	texts := transcriptTexts(app)
	if len(texts) != 3 {
		t.Fatalf("expected welcome, user and one reply, got %v", texts)
	}
	if last := texts[2]; last != "⚠️ Creative Agent API error: no agent transport configured" {
		t.Fatalf("unexpected reply %q", last)
	}
}

func TestLockedTaskRefusesChat(t *testing.T) {
	app := newTestApp(t, nil)
	app, _ = press(t, app, "down")
	if app.session.SelectedID() != "T2" {
		t.Fatalf("expected T2, got %s", app.session.SelectedID())
	}
	app, _ = press(t, app, "tab")
	if app.focus != focusBoard {
		t.Fatalf("chat must stay unfocused while requirements are open")
	}
	if !strings.Contains(app.statusMsg, "locked") {
		t.Fatalf("expected locked status, got %q", app.statusMsg)
	}
	if !strings.Contains(app.View(), "Complete the requirements") {
		t.Fatalf("view should show the locked input")
	}
}

func TestNextAdvancesWhenKPIsDone(t *testing.T) {
	app := newTestApp(t, nil)
	app, _ = press(t, app, "n")
	if app.session.SelectedID() != "T1" {
		t.Fatalf("next must not move before KPIs are done")
	}
	for _, id := range []string{"K1", "K2"} {
		if err := app.session.UpdateKPI("T1", id, board.Complete("done")); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}
	app, _ = press(t, app, "n")
	if app.session.SelectedID() != "T2" {
		t.Fatalf("expected T2 after next, got %s", app.session.SelectedID())
	}
	if app.session.Panel().ChatBlocked {
		t.Fatalf("requirements should be cleared on advance")
	}
}

func TestRosterToggleAndCanvasEdits(t *testing.T) {
	app := newTestApp(t, nil)
	app, _ = press(t, app, "2")
	if !app.session.IsMember("A2") {
		t.Fatalf("expected A2 toggled on")
	}
	before := app.session.Board().Len()
	app, _ = press(t, app, "a")
	if app.session.Board().Len() != before+1 {
		t.Fatalf("expected a task to be added")
	}
	app, _ = press(t, app, "x")
	if app.session.Board().Len() != before {
		t.Fatalf("expected selected task removed")
	}
	if _, ok := app.session.Board().Task("T1"); ok {
		t.Fatalf("T1 should be gone")
	}
	if app.session.SelectedID() == "" {
		t.Fatalf("a remaining task should be selected")
	}
}

func TestReloadAndNotificationMessages(t *testing.T) {
	reloads := make(chan responder.Reload, 1)
	notes := make(chan bridge.Notification, 1)
	app := newTestApp(t, nil, WithReloads(reloads), WithNotifications(notes))

	table := responder.NewTable(responder.Trigger{Name: "ping", Match: responder.ExactPhrase("ping")})
	if app.Init() == nil {
		t.Fatalf("expected init to wait on channels")
	}
	reloads <- responder.Reload{Table: table}
	model, next := app.Update(waitForReload(reloads)())
	app = model.(*App)
	if next == nil {
		t.Fatalf("expected another reload wait")
	}
	if app.session.Table() != table {
		t.Fatalf("expected reloaded table to be active")
	}

	model, _ = app.Update(notificationMsg(bridge.Notification{Name: "send_whatsapp"}))
	app = model.(*App)
	if !strings.Contains(app.statusMsg, "send_whatsapp") {
		t.Fatalf("expected notification status, got %q", app.statusMsg)
	}

	model, _ = app.Update(reloadMsg(responder.Reload{Err: errors.New("bad yaml")}))
	app = model.(*App)
	if app.session.Table() != table {
		t.Fatalf("failed reload must keep the previous table")
	}
}

func TestViewShowsLogPanel(t *testing.T) {
	lb, err := logbook.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	app := newTestApp(t, nil, WithLogbook(lb))
	lb.Info("board ready")
	view := app.View()
	for _, want := range []string{"⬡ PLANBOARD", "LOG · board.log", "board ready", "KPI"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}
