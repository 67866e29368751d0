// internal/config/config.go
//
// This package handles configuration and the .planboard directory structure.
// Every project that uses planboard gets a .planboard/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".planboard"

	defaultStrategy = "clear"
	// DefaultBridgeHost keeps the bridge on loopback unless configured otherwise.
	DefaultBridgeHost = "127.0.0.1"
	// DefaultBridgePort is the bridge port when none is configured.
	DefaultBridgePort = 8765
)

const defaultProjectConfigYAML = `# planboard project configuration
version: 1

board:
  # Board definition file. Leave empty to use the built-in demo board.
  seed: ""
  # What Next does to the following task's requirements: clear | complete
  requirement_strategy: clear

# Chat endpoints keyed by agent id. Agents left out are routed to the local
# bridge when it is enabled, otherwise they answer with a scripted note.
agents: {}
  # A1:
  #   endpoint: https://example.com/agents/creative

# Notification endpoints referenced by triggers.
notify: {}
  # send_whatsapp: https://specialized-agent.onrender.com/send_whatsapp

triggers:
  # Trigger table file. Leave empty to use the built-in workflows.
  path: ""
  watch: true

playback:
  # Multiplier for scripted step delays. 0 plays every step immediately.
  delay_scale: 1

bridge:
  enabled: true
  host: 127.0.0.1
  port: 8765
`

// BoardConfig selects the board definition and Next behaviour.
type BoardConfig struct {
	Seed                string `yaml:"seed"`
	RequirementStrategy string `yaml:"requirement_strategy"`
}

// AgentConfig configures one roster agent.
type AgentConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// TriggersConfig locates the trigger table.
type TriggersConfig struct {
	Path  string `yaml:"path"`
	Watch *bool  `yaml:"watch,omitempty"`
}

// PlaybackConfig tunes scripted playback.
type PlaybackConfig struct {
	DelayScale *float64 `yaml:"delay_scale,omitempty"`
}

// BridgeConfig configures the local agent endpoint server.
type BridgeConfig struct {
	Enabled *bool             `yaml:"enabled,omitempty"`
	Host    string            `yaml:"host,omitempty"`
	Port    int               `yaml:"port,omitempty"`
	Replies map[string]string `yaml:"replies,omitempty"`
}

// ProjectConfig models .planboard/config.yaml.
type ProjectConfig struct {
	Version  int                    `yaml:"version"`
	Board    BoardConfig            `yaml:"board"`
	Agents   map[string]AgentConfig `yaml:"agents"`
	Notify   map[string]string      `yaml:"notify"`
	Triggers TriggersConfig         `yaml:"triggers"`
	Playback PlaybackConfig         `yaml:"playback"`
	Bridge   BridgeConfig           `yaml:"bridge"`
}

// Config holds the runtime configuration for planboard.
type Config struct {
	// ProjectDir is the directory where the user ran `planboard` from
	ProjectDir string

	// DataDir is ProjectDir/.planboard
	DataDir string

	Project ProjectConfig
}

// InitDir creates the .planboard directory structure in the given project
// directory and writes the default config when none exists.
//
// Structure created:
// .planboard/
// ├── config.yaml
// └── logs/         <- board journal and diagnostic log
func InitDir(projectDir string) error {
	dataDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", dataDir, err)
	}
	return ensureProjectConfig(filepath.Join(dataDir, "config.yaml"))
}

// NewConfig loads .planboard/config.yaml (defaults when missing) and applies
// PLANBOARD_* environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		DataDir:    filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Project.normalize(projectDir)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// SeedPath returns the configured board file, or "" for the built-in board.
func (c *Config) SeedPath() string {
	return c.Project.Board.Seed
}

// RequirementStrategy returns the configured strategy name.
func (c *Config) RequirementStrategy() string {
	return c.Project.Board.RequirementStrategy
}

// TriggersPath returns the configured trigger table, or "".
func (c *Config) TriggersPath() string {
	return c.Project.Triggers.Path
}

// WatchTriggers reports whether the trigger file should be hot reloaded.
func (c *Config) WatchTriggers() bool {
	return c.Project.Triggers.Watch == nil || *c.Project.Triggers.Watch
}

// DelayScale returns the playback multiplier.
func (c *Config) DelayScale() float64 {
	if c.Project.Playback.DelayScale == nil {
		return 1
	}
	return *c.Project.Playback.DelayScale
}

// BridgeEnabled reports whether the local bridge should run.
func (c *Config) BridgeEnabled() bool {
	return c.Project.Bridge.Enabled == nil || *c.Project.Bridge.Enabled
}

// AgentEndpoints resolves chat URLs for the given roster ids. Explicit
// endpoints win; when bridgeURL is non-empty the remaining agents are routed
// to it.
func (c *Config) AgentEndpoints(agentIDs []string, bridgeURL string) map[string]string {
	out := map[string]string{}
	for _, id := range agentIDs {
		if agent, ok := c.Project.Agents[id]; ok && agent.Endpoint != "" {
			out[id] = agent.Endpoint
			continue
		}
		if bridgeURL != "" {
			out[id] = strings.TrimRight(bridgeURL, "/") + "/agents/" + id
		}
	}
	return out
}

// NotifyEndpoints resolves notification URLs for the given names the same
// way AgentEndpoints does.
func (c *Config) NotifyEndpoints(names []string, bridgeURL string) map[string]string {
	out := map[string]string{}
	for name, url := range c.Project.Notify {
		out[name] = url
	}
	if bridgeURL == "" {
		return out
	}
	for _, name := range names {
		if _, ok := out[name]; ok || name == "" {
			continue
		}
		out[name] = strings.TrimRight(bridgeURL, "/") + "/notify/" + name
	}
	return out
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Board: BoardConfig{
			RequirementStrategy: defaultStrategy,
		},
		Agents: map[string]AgentConfig{},
		Notify: map[string]string{},
		Bridge: BridgeConfig{
			Host: DefaultBridgeHost,
			Port: DefaultBridgePort,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Agents == nil {
		pc.Agents = map[string]AgentConfig{}
	}
	if pc.Notify == nil {
		pc.Notify = map[string]string{}
	}
	if strings.TrimSpace(pc.Board.RequirementStrategy) == "" {
		pc.Board.RequirementStrategy = defaultStrategy
	}
	if strings.TrimSpace(pc.Bridge.Host) == "" {
		pc.Bridge.Host = DefaultBridgeHost
	}
	if pc.Bridge.Port == 0 {
		pc.Bridge.Port = DefaultBridgePort
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.applyDefaults()
	pc.Board.Seed = resolvePath(base, pc.Board.Seed)
	pc.Board.RequirementStrategy = strings.ToLower(strings.TrimSpace(pc.Board.RequirementStrategy))
	pc.Triggers.Path = resolvePath(base, pc.Triggers.Path)
	for id, agent := range pc.Agents {
		agent.Endpoint = strings.TrimSpace(agent.Endpoint)
		pc.Agents[id] = agent
	}
	for name, url := range pc.Notify {
		pc.Notify[name] = strings.TrimSpace(url)
	}
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Board.RequirementStrategy {
	case "clear", "complete":
	default:
		return fmt.Errorf("board.requirement_strategy must be 'clear' or 'complete'")
	}
	for _, id := range sortedKeys(pc.Agents) {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("agents: empty agent id")
		}
		if err := validateURL(pc.Agents[id].Endpoint); err != nil {
			return fmt.Errorf("agents[%s].endpoint: %w", id, err)
		}
	}
	for _, name := range sortedKeys(pc.Notify) {
		if pc.Notify[name] == "" {
			return fmt.Errorf("notify[%s]: url is required", name)
		}
		if err := validateURL(pc.Notify[name]); err != nil {
			return fmt.Errorf("notify[%s]: %w", name, err)
		}
	}
	if pc.Playback.DelayScale != nil && *pc.Playback.DelayScale < 0 {
		return fmt.Errorf("playback.delay_scale must be >= 0")
	}
	if pc.Bridge.Port < 1 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535")
	}
	return nil
}

func validateURL(value string) error {
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("%q must be an http(s) URL", value)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
