// Package agentclient talks to external agent chat endpoints.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kingrea/planboard/internal/board"
)

const (
	// DefaultTimeout bounds a single chat round trip.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxReplyBytes caps how much of a reply body is read.
	DefaultMaxReplyBytes int64 = 1 << 20
)

// ErrNoEndpoint is returned for agents that have no chat URL.
var ErrNoEndpoint = errors.New("agentclient: no endpoint configured")

// replyFields are checked in order; the first present one is the reply.
var replyFields = []string{"reply", "response", "result", "message"}

// Logger is the minimal sink the client writes diagnostics to.
type Logger interface {
	Printf(format string, args ...any)
}

// HTTPError reports a non-2xx reply.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s – %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client posts chat queries to agents.
type Client struct {
	http     *http.Client
	logger   Logger
	metrics  *Metrics
	maxReply int64
	clock    func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a client with a DefaultTimeout HTTP client.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   nopLogger{},
		maxReply: DefaultMaxReplyBytes,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Ask posts {"query": query} to the agent's endpoint and returns the reply
// text.
func (c *Client) Ask(ctx context.Context, agent *board.Agent, query string) (string, error) {
	if agent == nil || strings.TrimSpace(agent.Endpoint) == "" {
		name := "<nil>"
		if agent != nil {
			name = agent.ID
		}
		c.logger.Printf("agentclient: no endpoint configured for agent %s", name)
		return "", ErrNoEndpoint
	}
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("agentclient: encode query: %w", err)
	}
	started := c.clock()
	reply, err := c.post(ctx, agent, payload)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Printf("agentclient: %s (%s): %v", agent.ID, agent.Endpoint, err)
	}
	c.metrics.observeAsk(agent.ID, outcome, c.clock().Sub(started))
	return reply, err
}

func (c *Client) post(ctx context.Context, agent *board.Agent, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxReply))
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Code: resp.StatusCode, Body: string(body)}
	}
	return ReplyText(agent.Name, resp.StatusCode, string(body)), nil
}

// ReplyText extracts the chat text from a successful response body.
func ReplyText(agentName string, status int, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return fmt.Sprintf("✅ %s responded (%d) but returned an empty body.", agentName, status)
	}
	if gjson.Valid(raw) {
		parsed := gjson.Parse(raw)
		if parsed.IsObject() {
			for _, field := range replyFields {
				value := parsed.Get(field)
				if value.Exists() && value.Type != gjson.Null {
					return value.String()
				}
			}
		}
	}
	return raw
}

// Notify posts an empty JSON object to url. Callers treat the outcome as
// informational only.
func (c *Client) Notify(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrNoEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		c.metrics.observeNotify("error")
		return fmt.Errorf("agentclient: notify %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeNotify("error")
		c.logger.Printf("agentclient: notify %s failed: %v", url, err)
		return fmt.Errorf("agentclient: notify %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxReply))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.observeNotify("error")
		c.logger.Printf("agentclient: notify %s: %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
		return &HTTPError{Code: resp.StatusCode, Body: string(body)}
	}
	c.metrics.observeNotify("ok")
	c.logger.Printf("agentclient: notify %s ok: %s", url, strings.TrimSpace(string(body)))
	return nil
}

// ErrorText renders a failed call as a transcript line.
func ErrorText(agent *board.Agent, err error) string {
	name := "Agent"
	if agent != nil && agent.Name != "" {
		name = agent.Name
	}
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("⚠️ %s API error: %s", name, msg)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
