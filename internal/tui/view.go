package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/board/gate"
)

var (
	accentColor = lipgloss.Color("#5B8DEF")
	alertColor  = lipgloss.Color("#FF6B6B")
	doneColor   = lipgloss.Color("#4CAF50")
	borderColor = lipgloss.Color("#444444")
	mutedColor  = lipgloss.Color("#AAAAAA")
	footerColor = lipgloss.Color("#888888")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	doneStyle    = lipgloss.NewStyle().Foreground(doneColor)
	lockedStyle  = lipgloss.NewStyle().Foreground(alertColor).Bold(true)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	agentStyle   = lipgloss.NewStyle().Bold(true).Foreground(doneColor)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderColor).Padding(0, 1)
)

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
		rightWidth = 0
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(alertColor).
		MarginBottom(1).
		Render("⬡ PLANBOARD")

	left := lipgloss.JoinVertical(lipgloss.Left,
		a.renderTaskHeader(leftWidth-4),
		"",
		a.transcript.View(),
		"",
		a.renderInput(),
	)
	leftBox := boxStyle.Width(max(20, leftWidth)).Render(left)

	var body string
	if rightWidth > 0 {
		right := lipgloss.JoinVertical(lipgloss.Left,
			a.tasks.View(),
			"",
			a.renderPanel(rightWidth-4),
			"",
			a.renderRoster(),
		)
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, boxStyle.Width(max(20, rightWidth)).Render(right))
	} else {
		body = leftBox
	}

	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(footerColor).
		MarginTop(1).
		Render(a.renderFooter())
	sections = append(sections, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// layout sizes the list and transcript for the current window.
func (a *App) layout() {
	width := max(60, a.width)
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 8
	if leftWidth < 40 {
		leftWidth = width - 8
	}
	height := max(10, a.height-16)
	a.tasks.SetSize(max(20, rightWidth-4), max(6, height/2))
	a.transcript.Width = max(20, leftWidth)
	a.transcript.Height = height
	a.input.Width = max(20, leftWidth-4)
	a.refreshTranscript()
}

func (a *App) renderTaskHeader(width int) string {
	t, ok := a.session.Selected()
	if !ok {
		return mutedStyle.Render("No task selected. Use ↑/↓ to pick one.")
	}
	title := headingStyle.Render(strings.TrimSpace(fmt.Sprintf("%s %s", t.Icon, t.Name)))
	st, _ := gate.StatusOf(a.session.Board(), t.ID)
	state := string(st.State)
	if st.State == gate.StateLocked {
		state = lockedStyle.Render(state)
	}
	desc := mutedStyle.Width(max(20, width)).Render(t.Description)
	return lipgloss.JoinVertical(lipgloss.Left, title+"  "+state, desc)
}

func (a *App) renderPanel(width int) string {
	panel := a.session.Panel()
	title := headingStyle.Render(strings.ToUpper(panel.Title))
	if !panel.HasItems() {
		return lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render(panel.EmptyHint))
	}
	var rows []string
	for _, item := range panel.Items {
		rows = append(rows, renderChecklistItem(item, panel.ChipLabel, width))
	}
	if panel.ChatBlocked {
		rows = append(rows, lockedStyle.Render("Chat locked until requirements are met"))
	}
	if panel.NextVisible {
		rows = append(rows, doneStyle.Render(fmt.Sprintf("Next → %s (press n)", panel.NextTaskID)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, rows...)...)
}

func renderChecklistItem(item board.ChecklistItem, chip string, width int) string {
	box := "☐"
	name := item.Name
	if item.Completed {
		box = doneStyle.Render("☑")
		name = doneStyle.Render(name)
	}
	line := fmt.Sprintf("%s %s %s", box, mutedStyle.Render("["+chip+"]"), name)
	if item.Target != "" {
		line += "\n    " + mutedStyle.Render("target: "+item.Target)
	}
	switch kind := gate.ClassifyEvidence(item.Evidence); kind {
	case gate.EvidenceNone:
	case gate.EvidenceText:
		line += "\n    " + mutedStyle.Render("evidence: "+item.Evidence)
	default:
		line += "\n    " + mutedStyle.Render(fmt.Sprintf("%s: %s", kind, item.Evidence))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(line)
}

func (a *App) renderRoster() string {
	roster := a.session.Board().Agents()
	if len(roster) == 0 {
		return ""
	}
	rows := []string{headingStyle.Render("AGENTS")}
	for i, agent := range roster {
		mark := "○"
		if a.session.IsMember(agent.ID) {
			mark = doneStyle.Render("●")
		}
		label := fmt.Sprintf("%d %s %s %s", i+1, mark, agent.Avatar, agent.Name)
		if i >= 9 {
			label = fmt.Sprintf("  %s %s %s", mark, agent.Avatar, agent.Name)
		}
		rows = append(rows, label)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (a *App) renderInput() string {
	if a.session.Panel().ChatBlocked {
		return lockedStyle.Render("🔒 Complete the requirements to start chatting.")
	}
	return a.input.View()
}

func (a *App) renderFooter() string {
	hints := "↑/↓ select  tab chat  n next  a add  x remove  1-9 toggle agent  q quit"
	if a.focus == focusChat {
		hints = "enter send  esc back"
	}
	if a.statusMsg == "" {
		return hints
	}
	return a.statusMsg + "\n" + hints
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := headingStyle.Render(fmt.Sprintf("LOG · %s", fileName))
	body := mutedStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

// renderTranscript lays out messages oldest first.
func renderTranscript(messages []board.Message, width int) string {
	if len(messages) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	var blocks []string
	for _, msg := range messages {
		label := msg.SenderLabel
		style := agentStyle
		if msg.SenderType == board.SenderUser {
			style = userStyle
			if label == "" {
				label = "You"
			}
		}
		head := style.Render(label) + " " + mutedStyle.Render(msg.CreatedAt.Local().Format("15:04:05"))
		var body []string
		if text := msg.Text(); text != "" {
			body = append(body, text)
		}
		for _, block := range msg.Content {
			if block.Type == board.BlockFile && block.File != nil {
				body = append(body, mutedStyle.Render("📎 "+block.File.Name))
			}
		}
		if wf, ok := msg.Metadata["triggeredWorkflow"].(string); ok {
			body = append(body, mutedStyle.Render("⚡ "+wf))
		}
		text := lipgloss.NewStyle().Width(width).Render(strings.Join(body, "\n"))
		blocks = append(blocks, head+"\n"+text)
	}
	return strings.Join(blocks, "\n\n")
}
