// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for planboard.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The session is only ever touched from Update. Timers and HTTP calls run as
// tea.Cmds and report back as messages.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/planboard/internal/board/gate"
	"github.com/kingrea/planboard/internal/bridge"
	"github.com/kingrea/planboard/internal/logbook"
	"github.com/kingrea/planboard/internal/responder"
	"github.com/kingrea/planboard/internal/session"
)

type focus int

const (
	focusBoard focus = iota
	focusChat
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithAsker sets the agent transport. Without one, every agent call answers
// with an error line so the turn still gets a reply.
func WithAsker(asker session.Asker) AppOption {
	return func(a *App) {
		a.asker = asker
	}
}

// WithLogbook shows the journal tail in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithReloads feeds trigger table reloads into the session.
func WithReloads(ch <-chan responder.Reload) AppOption {
	return func(a *App) {
		a.reloads = ch
	}
}

// WithNotifications surfaces bridge notifications in the status line.
func WithNotifications(ch <-chan bridge.Notification) AppOption {
	return func(a *App) {
		a.notifications = ch
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	session       *session.Session
	asker         session.Asker
	logbook       *logbook.Logbook
	reloads       <-chan responder.Reload
	notifications <-chan bridge.Notification

	// in-flight agent calls per task, cancelled when the task is left
	inflight map[string]inflightCall

	// UI components
	tasks      list.Model
	input      textinput.Model
	transcript viewport.Model
	focus      focus
	statusMsg  string

	// Window size (we get this from bubbletea)
	width  int
	height int
}

type inflightCall struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// taskItem implements list.Item for one board task.
type taskItem struct {
	id     string
	title  string
	desc   string
	filter string
}

func (i taskItem) Title() string       { return i.title }
func (i taskItem) Description() string { return i.desc }
func (i taskItem) FilterValue() string { return i.filter }

// NewApp creates the board UI over sess and selects the first task.
func NewApp(sess *session.Session, opts ...AppOption) (*App, error) {
	if sess == nil {
		return nil, errors.New("tui: session is nil")
	}
	tasks := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tasks.Title = "TASKS"
	tasks.SetShowStatusBar(false)
	tasks.SetFilteringEnabled(false)
	tasks.SetShowHelp(false)
	tasks.KeyMap.Quit.SetEnabled(false)

	input := textinput.New()
	input.Placeholder = "Message the team…"
	input.CharLimit = 1000

	app := &App{
		session:    sess,
		inflight:   map[string]inflightCall{},
		tasks:      tasks,
		input:      input,
		transcript: viewport.New(0, 0),
		focus:      focusBoard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.asker == nil {
		app.asker = offlineAsker{}
	}
	app.refreshTasks()
	if ids := sess.Board().IDs(); len(ids) > 0 && sess.SelectedID() == "" {
		if err := app.selectTask(ids[0]); err != nil {
			return nil, err
		}
	}
	app.refreshTranscript()
	return app, nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(waitForReload(a.reloads), waitForNotification(a.notifications))
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case stepDueMsg:
		a.deliver(a.session.StepDelivery(msg.dispatch, msg.step))
		return a, nil

	case agentReplyMsg:
		if errors.Is(msg.err, context.Canceled) {
			return a, nil
		}
		a.deliver(a.session.ReplyDelivery(msg.dispatch, msg.call, msg.reply, msg.err))
		return a, nil

	case notifyDoneMsg:
		if msg.err != nil {
			a.logWarn("notify %s failed: %v", msg.url, msg.err)
		}
		return a, nil

	case reloadMsg:
		if msg.Err != nil {
			a.statusMsg = "Trigger reload failed; keeping previous table"
			a.logError("trigger reload: %v", msg.Err)
		} else {
			a.session.SetTable(msg.Table)
			a.statusMsg = fmt.Sprintf("Triggers reloaded (%d)", msg.Table.Len())
		}
		return a, waitForReload(a.reloads)

	case notificationMsg:
		a.statusMsg = fmt.Sprintf("📣 %s delivered", msg.Name)
		return a, waitForNotification(a.notifications)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.cancelAll()
			return a, tea.Quit
		}
		if a.focus == focusChat {
			return a.updateChat(msg)
		}
		return a.updateBoard(msg)
	}
	return a, nil
}

func (a *App) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		a.cancelAll()
		return a, tea.Quit
	case "tab", "enter":
		return a, a.focusInput()
	case "n":
		a.next()
		return a, nil
	case "a":
		id, err := a.session.AddBlankTask()
		if a.report(err) {
			a.refreshTasks()
			a.statusMsg = fmt.Sprintf("Added %s", id)
		}
		return a, nil
	case "x":
		a.removeSelected()
		return a, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		a.toggleAgent(int(key[0] - '1'))
		return a, nil
	}

	before := a.tasks.Index()
	var cmd tea.Cmd
	a.tasks, cmd = a.tasks.Update(msg)
	if a.tasks.Index() != before {
		if item, ok := a.tasks.SelectedItem().(taskItem); ok {
			a.report(a.selectTask(item.id))
		}
	}
	return a, cmd
}

func (a *App) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab":
		a.focus = focusBoard
		a.input.Blur()
		return a, nil
	case "enter":
		return a, a.send()
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) focusInput() tea.Cmd {
	if a.session.Panel().ChatBlocked {
		a.statusMsg = "Chat is locked until the requirements are complete"
		return nil
	}
	a.focus = focusChat
	return a.input.Focus()
}

func (a *App) send() tea.Cmd {
	text := a.input.Value()
	d, err := a.session.Send(text, nil)
	if !a.report(err) {
		return nil
	}
	a.input.Reset()
	if d.Empty() {
		return nil
	}
	if d.Trigger != nil {
		a.statusMsg = fmt.Sprintf("Running %s", d.Trigger.Effect.Workflow)
	}
	a.refreshTasks()
	a.refreshTranscript()
	return a.playback(a.taskContext(d.TaskID), d)
}

func (a *App) deliver(d session.Delivery) {
	err := a.session.Deliver(d)
	if errors.Is(err, session.ErrStale) {
		return
	}
	if a.report(err) {
		a.refreshTranscript()
	}
}

func (a *App) selectTask(id string) error {
	if prev := a.session.SelectedID(); prev != "" && prev != id {
		a.cancelTask(prev)
	}
	if err := a.session.Select(id); err != nil {
		return err
	}
	a.input.Reset()
	if a.session.Panel().ChatBlocked {
		a.focus = focusBoard
		a.input.Blur()
	}
	a.refreshTasks()
	a.refreshTranscript()
	return nil
}

func (a *App) next() {
	panel := a.session.Panel()
	if !panel.NextVisible {
		a.statusMsg = "Next unlocks once every KPI is complete"
		return
	}
	a.cancelTask(a.session.SelectedID())
	id, err := a.session.Next()
	if !a.report(err) {
		return
	}
	a.statusMsg = fmt.Sprintf("Moved to %s", id)
	a.refreshTasks()
	a.refreshTranscript()
}

func (a *App) removeSelected() {
	id := a.session.SelectedID()
	if id == "" {
		return
	}
	a.cancelTask(id)
	if !a.report(a.session.RemoveTask(id)) {
		return
	}
	a.statusMsg = fmt.Sprintf("Removed %s", id)
	a.refreshTasks()
	if item, ok := a.tasks.SelectedItem().(taskItem); ok {
		a.report(a.selectTask(item.id))
	}
	a.refreshTranscript()
}

func (a *App) toggleAgent(idx int) {
	roster := a.session.Board().Agents()
	if idx < 0 || idx >= len(roster) {
		return
	}
	if a.report(a.session.ToggleMember(roster[idx].ID)) {
		state := "left"
		if a.session.IsMember(roster[idx].ID) {
			state = "joined"
		}
		a.statusMsg = fmt.Sprintf("%s %s the chat", roster[idx].Name, state)
	}
}

// report records err for display and reports whether the call succeeded.
func (a *App) report(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, session.ErrChatBlocked):
		a.statusMsg = "Chat is locked until the requirements are complete"
	default:
		a.statusMsg = err.Error()
	}
	a.logWarn("%v", err)
	return false
}

func (a *App) taskContext(taskID string) context.Context {
	if f, ok := a.inflight[taskID]; ok {
		return f.ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.inflight[taskID] = inflightCall{ctx: ctx, cancel: cancel}
	return ctx
}

// cancelTask aborts agent calls still running for taskID.
func (a *App) cancelTask(taskID string) {
	if f, ok := a.inflight[taskID]; ok {
		f.cancel()
		delete(a.inflight, taskID)
	}
}

func (a *App) cancelAll() {
	for id := range a.inflight {
		a.cancelTask(id)
	}
}

func (a *App) refreshTasks() {
	b := a.session.Board()
	statuses := gate.Summarize(b)
	items := make([]list.Item, 0, len(statuses))
	selected := 0
	for i, st := range statuses {
		t, _ := b.Task(st.TaskID)
		items = append(items, taskItem{
			id:     t.ID,
			title:  taskTitle(t.Icon, t.ID, t.Name, st),
			desc:   taskDescription(st, t.Successors),
			filter: t.Name,
		})
		if t.ID == a.session.SelectedID() {
			selected = i
		}
	}
	a.tasks.SetItems(items)
	if len(items) > 0 {
		a.tasks.Select(selected)
	}
}

func (a *App) refreshTranscript() {
	a.transcript.SetContent(renderTranscript(a.session.Transcript(), max(20, a.transcript.Width)))
	a.transcript.GotoBottom()
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func taskTitle(icon, id, name string, st gate.Status) string {
	title := strings.TrimSpace(fmt.Sprintf("%s %s · %s", icon, id, name))
	if badge := st.Badge(); badge != "" {
		title += " [" + badge + "]"
	}
	return title
}

func taskDescription(st gate.Status, successors []string) string {
	parts := []string{string(st.State)}
	if len(st.BlockedBy) > 0 {
		parts = append(parts, "waiting on "+strings.Join(st.BlockedBy, ", "))
	}
	if len(successors) > 0 {
		parts = append(parts, "→ "+strings.Join(successors, ", "))
	}
	return strings.Join(parts, " · ")
}
