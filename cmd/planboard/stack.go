package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingrea/planboard/internal/agentclient"
	"github.com/kingrea/planboard/internal/board"
	"github.com/kingrea/planboard/internal/bridge"
	"github.com/kingrea/planboard/internal/config"
	"github.com/kingrea/planboard/internal/logbook"
	"github.com/kingrea/planboard/internal/logging"
	"github.com/kingrea/planboard/internal/responder"
	"github.com/kingrea/planboard/internal/session"
)

// stackOptions selects how much of the stack a command needs.
type stackOptions struct {
	projectDir string
	// logToFile sends diagnostics to .planboard/logs instead of stderr.
	logToFile bool
	// bridge starts the local agent server: "auto" follows config, "on"
	// forces it, "off" skips it.
	bridge string
}

// stack is the wired set of components shared by every command.
type stack struct {
	cfg      *config.Config
	journal  *logbook.Logbook
	logger   *logging.Logger
	registry *prometheus.Registry
	router   *bridge.Router
	server   *bridge.Server
	board    *board.Board
	table    *responder.Table
	client   *agentclient.Client
	notify   map[string]string
	strategy board.RequirementStrategy
}

func openStack(ctx context.Context, opts stackOptions) (*stack, error) {
	if err := config.InitDir(opts.projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(opts.projectDir)
	if err != nil {
		return nil, err
	}
	journal, err := logbook.Open(cfg.LogsDir())
	if err != nil {
		return nil, err
	}
	logger := logging.Stderr()
	if opts.logToFile {
		if logger, err = logging.New(opts.projectDir); err != nil {
			return nil, err
		}
	}
	st := &stack{
		cfg:      cfg,
		journal:  journal,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	st.router = bridge.NewRouter(bridge.RouterWithLogger(logger))

	def := board.SeedDefinition()
	if path := cfg.SeedPath(); path != "" {
		if def, err = board.LoadDefinitionFile(path); err != nil {
			st.Close()
			return nil, err
		}
	}
	st.table = responder.DefaultTable()
	if path := cfg.TriggersPath(); path != "" {
		if st.table, err = responder.LoadTable(path); err != nil {
			st.Close()
			return nil, err
		}
	}
	if st.strategy, err = board.ParseRequirementStrategy(cfg.RequirementStrategy()); err != nil {
		st.Close()
		return nil, err
	}

	bridgeURL, err := st.startBridge(ctx, opts.bridge, def.Agents)
	if err != nil {
		st.Close()
		return nil, err
	}

	ids := make([]string, 0, len(def.Agents))
	for _, agent := range def.Agents {
		ids = append(ids, agent.ID)
	}
	if st.board, err = board.New(def.WithEndpoints(cfg.AgentEndpoints(ids, bridgeURL))); err != nil {
		st.Close()
		return nil, err
	}
	st.notify = cfg.NotifyEndpoints(st.table.Notifications(), bridgeURL)
	st.client = agentclient.New(
		agentclient.WithLogger(logger),
		agentclient.WithMetrics(agentclient.NewMetrics(st.registry)),
	)
	journal.Info("board %q loaded: %d tasks, %d triggers", st.board.Title(), st.board.Len(), st.table.Len())
	return st, nil
}

func (st *stack) startBridge(ctx context.Context, mode string, agents []board.Agent) (string, error) {
	settings := bridge.SettingsFromConfig(st.cfg)
	switch mode {
	case "off":
		return "", nil
	case "on":
		settings.Enabled = true
	}
	if !settings.Enabled {
		return "", nil
	}
	roster := make([]*board.Agent, 0, len(agents))
	for i := range agents {
		roster = append(roster, &agents[i])
	}
	server := bridge.NewServer(settings,
		bridge.WithProcessor(st.router),
		bridge.WithLogger(st.logger),
		bridge.WithRoster(roster),
		bridge.WithRegistry(st.registry),
	)
	if err := server.Start(ctx); err != nil {
		if mode == "on" || errors.Is(err, bridge.ErrDisabled) {
			return "", err
		}
		// another planboard may already own the port; run without local agents
		st.journal.Warn("bridge unavailable: %v", err)
		return "", nil
	}
	st.server = server
	st.journal.Info("bridge listening at %s", server.BaseURL())
	return server.BaseURL(), nil
}

// newSession starts a session over the loaded board.
func (st *stack) newSession() (*session.Session, error) {
	return session.New(st.board,
		session.WithTable(st.table),
		session.WithStrategy(st.strategy),
		session.WithNotifyEndpoints(st.notify),
		session.WithDelayScale(st.cfg.DelayScale()),
		session.WithJournal(st.journal),
	)
}

// watchTriggers hot reloads the trigger file when configured to.
func (st *stack) watchTriggers() (*responder.Watcher, error) {
	path := st.cfg.TriggersPath()
	if path == "" || !st.cfg.WatchTriggers() {
		return nil, nil
	}
	w, err := responder.Watch(path)
	if err != nil {
		return nil, fmt.Errorf("watch triggers: %w", err)
	}
	return w, nil
}

// Close stops the bridge and releases the log file.
func (st *stack) Close() {
	if st.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := st.server.Shutdown(ctx); err != nil {
			st.logger.Printf("bridge shutdown: %v", err)
		}
		cancel()
	}
	if st.logger != nil {
		_ = st.logger.Close()
	}
}
