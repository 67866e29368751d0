package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/bridge"
	"github.com/kingrea/planboard/internal/responder"
	"github.com/kingrea/planboard/internal/session"
)

type stepDueMsg struct {
	dispatch session.Dispatch
	step     session.ScheduledStep
}

type agentReplyMsg struct {
	dispatch session.Dispatch
	call     session.AgentCall
	reply    string
	err      error
}

type notifyDoneMsg struct {
	url string
	err error
}

var errNoTransport = errors.New("no agent transport configured")

// offlineAsker stands in when the app runs without a transport.
type offlineAsker struct{}

func (offlineAsker) Ask(context.Context, *board.Agent, string) (string, error) {
	return "", errNoTransport
}

func (offlineAsker) Notify(context.Context, string) error {
	return errNoTransport
}

type reloadMsg responder.Reload

type notificationMsg bridge.Notification

// playback turns a Dispatch into commands whose results come back to Update.
func (a *App) playback(ctx context.Context, d session.Dispatch) tea.Cmd {
	var cmds []tea.Cmd
	for _, step := range d.Steps {
		cmds = append(cmds, tea.Tick(step.At, func(time.Time) tea.Msg {
			return stepDueMsg{dispatch: d, step: step}
		}))
	}
	for _, call := range d.Calls {
		cmds = append(cmds, func() tea.Msg {
			reply, err := a.asker.Ask(ctx, call.Agent, call.Query)
			return agentReplyMsg{dispatch: d, call: call, reply: reply, err: err}
		})
	}
	if url := d.NotifyURL; url != "" {
		cmds = append(cmds, func() tea.Msg {
			return notifyDoneMsg{url: url, err: a.asker.Notify(context.Background(), url)}
		})
	}
	return tea.Batch(cmds...)
}

func waitForReload(ch <-chan responder.Reload) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg(r)
	}
}

func waitForNotification(ch <-chan bridge.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}
