package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are the PLANBOARD_* variables. Unset variables leave the file
// configuration alone.
type EnvOverrides struct {
	Seed           string            `env:"PLANBOARD_BOARD_SEED"`
	Strategy       string            `env:"PLANBOARD_REQUIREMENT_STRATEGY"`
	Triggers       string            `env:"PLANBOARD_TRIGGERS"`
	WatchTriggers  *bool             `env:"PLANBOARD_WATCH_TRIGGERS"`
	DelayScale     *float64          `env:"PLANBOARD_DELAY_SCALE"`
	BridgeEnabled  *bool             `env:"PLANBOARD_BRIDGE_ENABLED"`
	BridgeHost     string            `env:"PLANBOARD_BRIDGE_HOST"`
	BridgePort     int               `env:"PLANBOARD_BRIDGE_PORT"`
	AgentEndpoints map[string]string `env:"PLANBOARD_AGENT_ENDPOINTS" envSeparator:"," envKeyValSeparator:"="`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var o EnvOverrides
	if err := ParseEnv(&o); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	o.apply(&c.Project)
	return nil
}

func (o EnvOverrides) apply(pc *ProjectConfig) {
	if v := strings.TrimSpace(o.Seed); v != "" {
		pc.Board.Seed = v
	}
	if v := strings.TrimSpace(o.Strategy); v != "" {
		pc.Board.RequirementStrategy = v
	}
	if v := strings.TrimSpace(o.Triggers); v != "" {
		pc.Triggers.Path = v
	}
	if o.WatchTriggers != nil {
		pc.Triggers.Watch = o.WatchTriggers
	}
	if o.DelayScale != nil {
		pc.Playback.DelayScale = o.DelayScale
	}
	if o.BridgeEnabled != nil {
		pc.Bridge.Enabled = o.BridgeEnabled
	}
	if v := strings.TrimSpace(o.BridgeHost); v != "" {
		pc.Bridge.Host = v
	}
	if o.BridgePort != 0 {
		pc.Bridge.Port = o.BridgePort
	}
	if len(o.AgentEndpoints) > 0 && pc.Agents == nil {
		pc.Agents = map[string]AgentConfig{}
	}
	for id, url := range o.AgentEndpoints {
		pc.Agents[strings.TrimSpace(id)] = AgentConfig{Endpoint: url}
	}
}
