package session

import (
	"strings"
	"time"

	"github.com/kingrea/planboard/internal/agentclient"
	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/board/gate"
	"github.com/kingrea/planboard/internal/responder"
)

// Dispatch describes the asynchronous work a chat turn started. Sequence
// numbers for every future message are reserved up front so the transcript
// keeps dispatch order however the work completes.
type Dispatch struct {
	TaskID     string
	Generation uint64
	User       board.Message

	// Trigger is set when the input matched the trigger table.
	Trigger      *responder.Trigger
	Steps        []ScheduledStep
	CompletedKPI string
	NotifyURL    string

	Calls    []AgentCall
	Fallback *board.Message
}

// Empty reports whether the turn did nothing.
func (d Dispatch) Empty() bool {
	return d.User.ID == ""
}

// ScheduledStep is one scripted message due At after dispatch.
type ScheduledStep struct {
	Index int
	At    time.Duration
	Seq   uint64
	Agent *board.Agent
}

// AgentCall is one outstanding request to an agent endpoint.
type AgentCall struct {
	Agent *board.Agent
	Query string
	Seq   uint64
}

// Delivery is a finished piece of a Dispatch, ready for Session.Deliver.
type Delivery struct {
	TaskID     string
	Generation uint64
	Message    board.Message
}

// Send posts user input to the selected task. Empty input without files is
// ignored. A trigger match schedules its steps and applies its KPI effect;
// otherwise every active agent with an endpoint is asked, falling back to a
// scripted acknowledgment when none can answer.
func (s *Session) Send(input string, files []board.File) (Dispatch, error) {
	task, ok := s.Selected()
	if !ok {
		return Dispatch{}, ErrNoTask
	}
	if gate.HasIncompleteRequirements(task) {
		return Dispatch{}, ErrChatBlocked
	}
	text := strings.TrimSpace(input)
	if text == "" && len(files) == 0 {
		return Dispatch{}, nil
	}

	user := s.message(board.SenderUser, nil, text)
	user.SenderLabel = "You"
	for _, f := range files {
		user.Content = append(user.Content, board.FileBlock(f))
	}
	d := Dispatch{TaskID: task.ID, Generation: s.generations[task.ID]}

	if trig, matched := s.table.Match(text); matched && text != "" {
		now := s.clock().UTC()
		user.Metadata["triggeredWorkflow"] = trig.Effect.Workflow
		user.Metadata["triggeredAt"] = now.Format(time.RFC3339)
		d.User = user
		if err := s.append(task.ID, user); err != nil {
			return Dispatch{}, err
		}
		s.journal.Info("trigger %s on %s", trig.Name, task.ID)
		d.Trigger = &trig
		s.schedule(&d, trig)
		if url, ok := s.notify[trig.Effect.Notify]; ok && url != "" {
			d.NotifyURL = url
		} else if trig.Effect.Notify != "" {
			s.journal.Warn("trigger %s: no endpoint for notify %q", trig.Name, trig.Effect.Notify)
		}
		if kpiID, ok := trig.Effect.CompleteKPI.Resolve(task); ok {
			if err := s.UpdateKPI(task.ID, kpiID, board.Complete(trig.Effect.Evidence)); err != nil {
				return d, err
			}
			d.CompletedKPI = kpiID
		}
		return d, nil
	}

	d.User = user
	if err := s.append(task.ID, user); err != nil {
		return Dispatch{}, err
	}
	if text == "" {
		return d, nil
	}
	active := s.ActiveAgents()
	for _, agent := range active {
		if strings.TrimSpace(agent.Endpoint) == "" {
			s.journal.Warn("agent %s has no endpoint; skipped", agent.ID)
			continue
		}
		d.Calls = append(d.Calls, AgentCall{Agent: agent, Query: text, Seq: s.nextSeq()})
	}
	if len(d.Calls) == 0 {
		fallback := responder.Fallback(s.DefaultAgent(), task, s.clock())
		fallback.ID = s.newID()
		fallback.Seq = s.nextSeq()
		if err := s.append(task.ID, fallback); err != nil {
			return d, err
		}
		d.Fallback = &fallback
	}
	return d, nil
}

func (s *Session) schedule(d *Dispatch, trig responder.Trigger) {
	agent := s.DefaultAgent()
	var at time.Duration
	for i, step := range trig.Effect.Steps {
		at += time.Duration(float64(step.Delay) * s.scale)
		d.Steps = append(d.Steps, ScheduledStep{Index: i, At: at, Seq: s.nextSeq(), Agent: agent})
	}
}

// StepDelivery renders a scheduled step as a Delivery.
func (s *Session) StepDelivery(d Dispatch, step ScheduledStep) Delivery {
	msg := responder.StepMessage(*d.Trigger, step.Index, step.Agent, d.TaskID, s.clock())
	msg.Seq = step.Seq
	return Delivery{TaskID: d.TaskID, Generation: d.Generation, Message: msg}
}

// ReplyDelivery renders an agent reply, or its error, as a Delivery.
func (s *Session) ReplyDelivery(d Dispatch, call AgentCall, reply string, err error) Delivery {
	text := reply
	if err != nil {
		text = agentclient.ErrorText(call.Agent, err)
		s.journal.Error("agent %s on %s: %v", call.Agent.ID, d.TaskID, err)
	}
	msg := board.Message{
		ID:          s.newID(),
		Seq:         call.Seq,
		CreatedAt:   s.clock().UTC(),
		SenderType:  board.SenderAgent,
		SenderID:    call.Agent.ID,
		SenderLabel: call.Agent.Name,
		Content:     []board.ContentBlock{board.TextBlock(text)},
		TaskID:      d.TaskID,
		Metadata:    map[string]any{},
	}
	return Delivery{TaskID: d.TaskID, Generation: d.Generation, Message: msg}
}
