package bridge

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/planboard/internal/config"
)

// Limits bounds request handling on the bridge.
type Limits struct {
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultLimits are generous for a loopback demo server: 1 MB bodies and
// 15s reads and writes.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes: 1 << 20,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  time.Minute,
	}
}

func (l Limits) orDefault() Limits {
	def := DefaultLimits()
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = def.MaxBodyBytes
	}
	if l.ReadTimeout <= 0 {
		l.ReadTimeout = def.ReadTimeout
	}
	if l.WriteTimeout <= 0 {
		l.WriteTimeout = def.WriteTimeout
	}
	if l.IdleTimeout <= 0 {
		l.IdleTimeout = def.IdleTimeout
	}
	return l
}

// Settings configure where the bridge listens and what it answers.
type Settings struct {
	Enabled bool
	Host    string
	// Port 0 asks the kernel for a free port. Only callers building Settings
	// directly can use it: the project config always resolves 1-65535.
	Port   int
	Limits Limits
	// Replies overrides the canned answer per agent id.
	Replies map[string]string
}

// SettingsFromConfig reads the bridge section of the project config.
// PLANBOARD_BRIDGE_* overrides are already folded in by config.NewConfig.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{Enabled: true}.withDefaults()
	}
	section := cfg.Project.Bridge
	s := Settings{
		Enabled: cfg.BridgeEnabled(),
		Host:    section.Host,
		Port:    section.Port,
	}
	if len(section.Replies) > 0 {
		s.Replies = make(map[string]string, len(section.Replies))
		for id, reply := range section.Replies {
			s.Replies[strings.TrimSpace(id)] = reply
		}
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = config.DefaultBridgeHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = config.DefaultBridgePort
	}
	s.Limits = s.Limits.orDefault()
	return s
}

// Address returns host:port for net.Listen.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the http base URL the settings describe.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
