// cmd/planboard/main.go
//
// This is the entry point for the planboard CLI.
// Running `planboard` with no subcommand opens the board TUI for the current
// directory; the subcommands expose the same board headless.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/board/gate"
	"github.com/kingrea/planboard/internal/bridge"
	"github.com/kingrea/planboard/internal/session"
	"github.com/kingrea/planboard/internal/tui"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagDir     string
	flagBridge  string
	flagTimeout time.Duration
	flagAgents  []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planboard",
		Short: "Plan work as a task graph and chat with the agents on each task",
		Long: `planboard shows a graph of tasks gated by requirements and KPIs. Each task has
a chat where scripted workflows and agent endpoints report progress; finishing
every KPI unlocks the next task.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagBridge, "bridge", "auto", "Local agent bridge: auto, on or off")

	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveAgentsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func projectDir() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func bridgeMode() (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(flagBridge)); mode {
	case "auto", "on", "off":
		return mode, nil
	default:
		return "", fmt.Errorf("--bridge must be auto, on or off (got %q)", flagBridge)
	}
}

func open(ctx context.Context, logToFile bool, bridgeOverride string) (*stack, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, err
	}
	mode, err := bridgeMode()
	if err != nil {
		return nil, err
	}
	if bridgeOverride != "" {
		mode = bridgeOverride
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return openStack(ctx, stackOptions{projectDir: dir, logToFile: logToFile, bridge: mode})
}

func runTUI(ctx context.Context) error {
	st, err := open(ctx, true, "")
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.newSession()
	if err != nil {
		return err
	}
	opts := []tui.AppOption{
		tui.WithAsker(st.client),
		tui.WithLogbook(st.journal),
	}
	watcher, err := st.watchTriggers()
	if err != nil {
		st.journal.Warn("%v", err)
	}
	if watcher != nil {
		defer watcher.Close()
		opts = append(opts, tui.WithReloads(watcher.Updates()))
	}
	if st.server != nil {
		sub := st.router.Subscribe(bridge.AllNotifications)
		defer sub.Close()
		opts = append(opts, tui.WithNotifications(sub.Notifications))
	}
	app, err := tui.NewApp(sess, opts...)
	if err != nil {
		return err
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print tasks, their gates and the dependency edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd.Context(), false, "off")
			if err != nil {
				return err
			}
			defer st.Close()
			printBoard(cmd.OutOrStdout(), st.board)
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <task> <message...>",
		Short: "Send one chat message to a task and print the replies",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if flagTimeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, flagTimeout)
				defer cancel()
			}
			st, err := open(ctx, false, "")
			if err != nil {
				return err
			}
			defer st.Close()
			return ask(ctx, cmd.OutOrStdout(), st, args[0], strings.Join(args[1:], " "))
		},
	}
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Give up waiting for replies after this long")
	cmd.Flags().StringSliceVar(&flagAgents, "agent", nil, "Toggle roster agent membership before sending (repeatable)")
	return cmd
}

func ask(ctx context.Context, out io.Writer, st *stack, taskID, text string) error {
	sess, err := st.newSession()
	if err != nil {
		return err
	}
	if err := sess.Select(taskID); err != nil {
		return err
	}
	for _, id := range flagAgents {
		if err := sess.ToggleMember(strings.TrimSpace(id)); err != nil {
			return err
		}
	}
	d, err := sess.Send(text, nil)
	if err != nil {
		return err
	}
	if d.Empty() {
		return fmt.Errorf("nothing to send")
	}
	printMessage(out, d.User)
	if d.CompletedKPI != "" {
		fmt.Fprintf(out, "  ✓ %s completed\n", d.CompletedKPI)
	}
	if d.Fallback != nil {
		printMessage(out, *d.Fallback)
	}
	runner := session.NewRunner(sess, st.client)
	runner.OnDeliver = func(msg board.Message) {
		printMessage(out, msg)
	}
	if _, err := runner.Run(ctx, d); err != nil {
		return fmt.Errorf("ask %s: %w", taskID, err)
	}
	if panel := sess.Panel(); panel.NextVisible {
		fmt.Fprintf(out, "\nAll KPIs complete. Next: %s\n", panel.NextTaskID)
	}
	return nil
}

func serveAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-agents",
		Short: "Run the local agent bridge until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			st, err := open(ctx, false, "on")
			if err != nil {
				return err
			}
			defer st.Close()

			sub := st.router.Subscribe(bridge.AllNotifications)
			defer sub.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bridge listening at %s (agents: %d)\n", st.server.BaseURL(), len(st.board.Agents()))
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "Shutting down")
					return nil
				case n, ok := <-sub.Notifications:
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%s notify %s %s\n", n.ReceivedAt.Format(time.RFC3339), n.Name, string(n.Payload))
				}
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the planboard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "planboard %s\n", version)
		},
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	taskStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	senderStyle = lipgloss.NewStyle().Bold(true)
)

func printBoard(out io.Writer, b *board.Board) {
	fmt.Fprintln(out, titleStyle.Render("⬡ "+b.Title()))
	for _, st := range gate.Summarize(b) {
		t, _ := b.Task(st.TaskID)
		head := fmt.Sprintf("%s %s  %s", t.ID, t.Name, mutedStyle.Render(string(st.State)))
		if badge := st.Badge(); badge != "" {
			head += " [" + badge + "]"
		}
		fmt.Fprintln(out, taskStyle.Render(head))
		panel := gate.Evaluate(t)
		for _, item := range panel.Items {
			mark := "☐"
			if item.Completed {
				mark = "☑"
			}
			fmt.Fprintf(out, "  %s %s %s\n", mark, mutedStyle.Render(panel.ChipLabel), item.Name)
		}
		var members []string
		for _, agent := range t.GroupMembers {
			members = append(members, agent.Name)
		}
		if len(members) > 0 {
			fmt.Fprintf(out, "  members: %s\n", strings.Join(members, ", "))
		}
	}
	edges := b.Edges()
	if len(edges) == 0 {
		return
	}
	fmt.Fprintln(out, titleStyle.Render("edges"))
	for _, e := range edges {
		fmt.Fprintf(out, "  %s → %s\n", e.From, e.To)
	}
}

func printMessage(out io.Writer, msg board.Message) {
	label := msg.SenderLabel
	if label == "" {
		label = string(msg.SenderType)
	}
	fmt.Fprintf(out, "%s %s\n", senderStyle.Render(label+":"), msg.Text())
}
