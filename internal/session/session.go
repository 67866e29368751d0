// Package session owns the mutable state of a board run: the current board
// snapshot, the selected task, the active members and the generation tokens
// that keep late replies out of the wrong transcript.
//
// A Session is not safe for concurrent use. The TUI update loop and Runner
// are its only writers and both call it from a single goroutine.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/board/gate"
	"github.com/kingrea/planboard/internal/responder"
)

var (
	// ErrNoTask is returned when an operation needs a selected task.
	ErrNoTask = errors.New("session: no task selected")
	// ErrChatBlocked is returned by Send while requirements are open.
	ErrChatBlocked = errors.New("session: chat blocked by incomplete requirements")
	// ErrStale marks a delivery whose generation has been superseded.
	ErrStale = errors.New("session: stale delivery")
)

// Journal receives activity lines. *logbook.Logbook satisfies it.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session is the single writer over a board.
type Session struct {
	board    *board.Board
	table    *responder.Table
	strategy board.RequirementStrategy
	notify   map[string]string
	scale    float64
	journal  Journal
	clock    func() time.Time
	newID    func() string

	selected    string
	members     []*board.Agent
	generations map[string]uint64
	seq         uint64
}

// Option customizes a Session.
type Option func(*Session)

// WithTable sets the trigger table. The default is responder.DefaultTable.
func WithTable(t *responder.Table) Option {
	return func(s *Session) {
		if t != nil {
			s.table = t
		}
	}
}

// WithStrategy sets how a successor's requirements are handled on Next.
func WithStrategy(strategy board.RequirementStrategy) Option {
	return func(s *Session) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}

// WithNotifyEndpoints maps notify names used by triggers to URLs.
func WithNotifyEndpoints(endpoints map[string]string) Option {
	return func(s *Session) {
		for name, url := range endpoints {
			s.notify[strings.TrimSpace(name)] = strings.TrimSpace(url)
		}
	}
}

// WithDelayScale multiplies scripted step delays. Zero plays instantly.
func WithDelayScale(scale float64) Option {
	return func(s *Session) {
		if scale >= 0 {
			s.scale = scale
		}
	}
}

// WithJournal records activity to j.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDs overrides message id generation.
func WithIDs(next func() string) Option {
	return func(s *Session) {
		if next != nil {
			s.newID = next
		}
	}
}

// New starts a session on b with no task selected.
func New(b *board.Board, opts ...Option) (*Session, error) {
	if b == nil {
		return nil, fmt.Errorf("session: board is nil")
	}
	s := &Session{
		board:       b,
		table:       responder.DefaultTable(),
		strategy:    board.ClearRequirements,
		notify:      map[string]string{},
		scale:       1,
		journal:     nopJournal{},
		clock:       time.Now,
		newID:       uuid.NewString,
		generations: map[string]uint64{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Board returns the current snapshot.
func (s *Session) Board() *board.Board {
	return s.board
}

// SetTable swaps the trigger table, for example after a file reload.
func (s *Session) SetTable(t *responder.Table) {
	if t == nil {
		return
	}
	s.table = t
	s.journal.Info("triggers reloaded: %s", strings.Join(t.Names(), ", "))
}

// Table returns the active trigger table.
func (s *Session) Table() *responder.Table {
	return s.table
}

// SelectedID returns the selected task id, or "".
func (s *Session) SelectedID() string {
	return s.selected
}

// Selected returns the selected task.
func (s *Session) Selected() (*board.Task, bool) {
	if s.selected == "" {
		return nil, false
	}
	return s.board.Task(s.selected)
}

// Panel evaluates the checklist panel for the selected task.
func (s *Session) Panel() gate.Panel {
	t, _ := s.Selected()
	return gate.Evaluate(t)
}

// Transcript returns the selected task's messages.
func (s *Session) Transcript() []board.Message {
	t, ok := s.Selected()
	if !ok {
		return nil
	}
	return t.Discussion
}

// Generation reports the current token for taskID.
func (s *Session) Generation(taskID string) uint64 {
	return s.generations[taskID]
}

// Select makes id the viewed task. Leaving a task bumps its generation so
// pending steps and replies for it are dropped. An empty transcript gets a
// welcome message.
func (s *Session) Select(id string) error {
	t, ok := s.board.Task(id)
	if !ok {
		return fmt.Errorf("session: select: %w", errNotFound(id))
	}
	if s.selected != "" && s.selected != id {
		s.generations[s.selected]++
	}
	s.selected = id
	s.members = append([]*board.Agent(nil), t.GroupMembers...)
	if len(t.Discussion) == 0 {
		welcome := responder.Welcome(s.DefaultAgent(), t, s.clock())
		welcome.Seq = s.nextSeq()
		if err := s.append(id, welcome); err != nil {
			return err
		}
	}
	s.journal.Info("select %s (%s)", id, t.Name)
	return nil
}

// ActiveAgents returns the toggled members, or the task's group members when
// none are toggled.
func (s *Session) ActiveAgents() []*board.Agent {
	if len(s.members) > 0 {
		return append([]*board.Agent(nil), s.members...)
	}
	t, ok := s.Selected()
	if !ok {
		return nil
	}
	return append([]*board.Agent(nil), t.GroupMembers...)
}

// IsMember reports whether agentID is currently toggled on.
func (s *Session) IsMember(agentID string) bool {
	for _, m := range s.members {
		if m.ID == agentID {
			return true
		}
	}
	return false
}

// ToggleMember adds or removes a roster agent from the active member list.
func (s *Session) ToggleMember(agentID string) error {
	if s.selected == "" {
		return ErrNoTask
	}
	agent, ok := s.board.Agent(agentID)
	if !ok {
		return fmt.Errorf("session: toggle: %w", errNotFoundKind("agent", agentID))
	}
	for i, m := range s.members {
		if m.ID == agentID {
			s.members = append(s.members[:i:i], s.members[i+1:]...)
			s.journal.Info("member %s removed from %s", agentID, s.selected)
			return nil
		}
	}
	s.members = append(s.members, agent)
	s.journal.Info("member %s added to %s", agentID, s.selected)
	return nil
}

// DefaultAgent is the sender of scripted messages: the first active agent,
// else the first roster agent.
func (s *Session) DefaultAgent() *board.Agent {
	if active := s.ActiveAgents(); len(active) > 0 {
		return active[0]
	}
	if roster := s.board.Agents(); len(roster) > 0 {
		return roster[0]
	}
	return nil
}

// UpdateKPI patches a KPI on any task.
func (s *Session) UpdateKPI(taskID, kpiID string, patch board.ItemPatch) error {
	next, err := s.board.ApplyUpdate(taskID, kpiID, patch)
	if err != nil {
		s.journal.Warn("kpi update %s/%s rejected: %v", taskID, kpiID, err)
		return err
	}
	s.board = next
	item, _ := next.Task(taskID)
	kpi, _ := item.KPI(kpiID)
	s.journal.Info("kpi %s/%s completed=%t", taskID, kpiID, kpi.Completed)
	return nil
}

// Next advances from the selected task to its first successor and selects it.
func (s *Session) Next() (string, error) {
	if s.selected == "" {
		return "", ErrNoTask
	}
	next, successor, err := s.board.Advance(s.selected, s.strategy)
	if err != nil {
		return "", err
	}
	s.board = next
	s.journal.Info("next %s -> %s (%s)", s.selected, successor, s.strategy)
	if err := s.Select(successor); err != nil {
		return "", err
	}
	return successor, nil
}

// AddTask places a new unconnected task on the board.
func (s *Session) AddTask(t board.Task) error {
	next, err := s.board.AddTask(t)
	if err != nil {
		return err
	}
	s.board = next
	s.journal.Info("task %s added", t.ID)
	return nil
}

// AddBlankTask adds a placeholder task with the next free id and returns it.
func (s *Session) AddBlankTask() (string, error) {
	id := s.board.NextTaskID()
	err := s.AddTask(board.Task{
		ID:          id,
		Name:        "New Task",
		Description: "Describe what happens in this step.",
		Icon:        "✨",
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveTask deletes a task. Removing the selected task clears the selection.
func (s *Session) RemoveTask(id string) error {
	next, err := s.board.RemoveTask(id)
	if err != nil {
		return err
	}
	s.board = next
	s.generations[id]++
	if s.selected == id {
		s.selected = ""
		s.members = nil
	}
	s.journal.Info("task %s removed", id)
	return nil
}

// Deliver appends a message produced by a Dispatch. Deliveries for a task
// whose generation has moved on are rejected with ErrStale.
func (s *Session) Deliver(d Delivery) error {
	if d.Generation != s.generations[d.TaskID] {
		return ErrStale
	}
	return s.append(d.TaskID, d.Message)
}

func (s *Session) append(taskID string, msg board.Message) error {
	next, err := s.board.AppendMessage(taskID, msg)
	if err != nil {
		return err
	}
	s.board = next
	return nil
}

func (s *Session) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) message(sender board.SenderType, agent *board.Agent, text string) board.Message {
	msg := board.Message{
		ID:         s.newID(),
		Seq:        s.nextSeq(),
		CreatedAt:  s.clock().UTC(),
		SenderType: sender,
		TaskID:     s.selected,
		Metadata:   map[string]any{},
	}
	if text != "" {
		msg.Content = []board.ContentBlock{board.TextBlock(text)}
	}
	if agent != nil {
		msg.SenderID = agent.ID
		msg.SenderLabel = agent.Name
	}
	return msg
}

func errNotFound(id string) error {
	return errNotFoundKind("task", id)
}

func errNotFoundKind(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, board.ErrNotFound)
}

type nopJournal struct{}

func (nopJournal) Info(string, ...any)  {}
func (nopJournal) Warn(string, ...any)  {}
func (nopJournal) Error(string, ...any) {}
