package responder

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/planboard/internal/board"
)

// WelcomeID is the fixed id of the greeting shown on an empty transcript.
const WelcomeID = "welcome"

// DefaultSender is used when neither the task nor the roster offers an agent.
var DefaultSender = board.Agent{ID: "agent", Name: "Agent"}

// Welcome greets the user on a task with no transcript and lists its KPIs.
func Welcome(agent *board.Agent, task *board.Task, now time.Time) board.Message {
	a := senderOrDefault(agent)
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Hi there! I'm %s. How can I help you with %q today?\n\nHere are the current KPIs:", a.Name, task.Name)
	for _, k := range task.KPIs {
		status := "Pending"
		if k.Completed {
			status = "Completed"
		}
		fmt.Fprintf(&b, "\n• %s — %s", k.Name, status)
	}
	return board.Message{
		ID:          WelcomeID,
		CreatedAt:   now.UTC(),
		SenderType:  board.SenderAgent,
		SenderID:    a.ID,
		SenderLabel: a.Name,
		Content:     []board.ContentBlock{board.TextBlock(b.String())},
		TaskID:      task.ID,
		Metadata:    map[string]any{},
	}
}

// Fallback acknowledges input that matched no trigger when no agent endpoint
// can answer it.
func Fallback(agent *board.Agent, task *board.Task, now time.Time) board.Message {
	a := senderOrDefault(agent)
	text := fmt.Sprintf("📝 Noted. I'll keep that in mind while we work on %q.", task.Name)
	return board.Message{
		CreatedAt:   now.UTC(),
		SenderType:  board.SenderAgent,
		SenderID:    a.ID,
		SenderLabel: a.Name,
		Content:     []board.ContentBlock{board.TextBlock(text)},
		TaskID:      task.ID,
		Metadata:    map[string]any{"kind": "fallback"},
	}
}

// StepMessage builds the transcript entry for step index of trigger.
func StepMessage(trigger Trigger, index int, agent *board.Agent, taskID string, now time.Time) board.Message {
	a := senderOrDefault(agent)
	text := ""
	if index >= 0 && index < len(trigger.Effect.Steps) {
		text = trigger.Effect.Steps[index].Text
	}
	return board.Message{
		ID:          fmt.Sprintf("workflow%d-%d-%d", trigger.Ordinal(), now.UnixMilli(), index),
		CreatedAt:   now.UTC(),
		SenderType:  board.SenderAgent,
		SenderID:    a.ID,
		SenderLabel: a.Name,
		Content:     []board.ContentBlock{board.TextBlock(text)},
		TaskID:      taskID,
		Metadata: map[string]any{
			"kind":      "workflow_step",
			"workflow":  trigger.Effect.Workflow,
			"stepIndex": index,
		},
	}
}

func senderOrDefault(agent *board.Agent) *board.Agent {
	if agent == nil {
		return &DefaultSender
	}
	return agent
}
