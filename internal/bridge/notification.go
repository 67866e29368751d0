package bridge

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ProtocolVersion identifies the bridge contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// Notification is one fire-and-forget POST received on /notify/{name}.
type Notification struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Normalize applies canonical formatting before validation.
func (n *Notification) Normalize() {
	if n == nil {
		return
	}
	n.ID = strings.TrimSpace(n.ID)
	n.Name = strings.ToLower(strings.TrimSpace(n.Name))
	if len(strings.TrimSpace(string(n.Payload))) == 0 {
		n.Payload = json.RawMessage("{}")
	}
}

// Validate enforces baseline requirements.
func (n Notification) Validate() error {
	if n.ID == "" {
		return errors.New("id is required")
	}
	if n.Name == "" {
		return errors.New("name is required")
	}
	if !json.Valid(n.Payload) {
		return errors.New("payload must be JSON")
	}
	return nil
}

// Processor consumes accepted notifications.
type Processor interface {
	HandleNotification(Notification) error
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(Notification) error

// HandleNotification executes f(n).
func (f ProcessorFunc) HandleNotification(n Notification) error {
	if f == nil {
		return nil
	}
	return f(n)
}

// Logger is the minimal diagnostics sink.
type Logger interface {
	Printf(format string, args ...any)
}
