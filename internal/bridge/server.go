// Package bridge serves local placeholder agent endpoints so a board can be
// driven end to end without any external service.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingrea/planboard/internal/board"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the settings disable the bridge.
var ErrDisabled = errors.New("bridge: server disabled")

// Server wraps the HTTP listener and handlers backing the bridge.
type Server struct {
	settings  Settings
	processor Processor
	logger    Logger
	clock     func() time.Time
	agents    map[string]*board.Agent
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithProcessor overrides the default no-op notification processor.
func WithProcessor(p Processor) Option {
	return func(s *Server) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRoster lets the server answer as the named agents.
func WithRoster(agents []*board.Agent) Option {
	return func(s *Server) {
		for _, a := range agents {
			if a != nil {
				s.agents[a.ID] = a
			}
		}
	}
}

// WithRegistry exposes reg on /metrics and records request counts on it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// NewServer prepares a bridge server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings = settings.withDefaults()
	s := &Server{
		settings:  settings,
		processor: ProcessorFunc(func(Notification) error { return nil }),
		logger:    nopLogger{},
		clock:     func() time.Time { return time.Now().UTC() },
		agents:    map[string]*board.Agent{},
		status:    StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planboard",
		Subsystem: "bridge",
		Name:      "requests_total",
		Help:      "Requests served by the local bridge by route and status code.",
	}, []string{"route", "code"})
	s.registry.MustRegister(s.requests)
	return s
}

// Handler builds the HTTP routes. Start serves it; tests may mount it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/agents/{id}", s.handleAgent)
	mux.HandleFunc("/notify/{name}", s.handleNotify)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("bridge: server is nil")
	}
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("bridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.Limits.ReadTimeout,
		WriteTimeout: s.settings.Limits.WriteTimeout,
		IdleTimeout:  s.settings.Limits.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("bridge: serve error: %v", err)
		}
	}()
	s.logger.Printf("bridge: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Agents        int    `json:"agents"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

type notifyResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		s.writeJSON(w, "health", http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.writeJSON(w, "health", http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		Agents:        len(s.agents),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, "agents", http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	body, status, err := s.readBody(w, r)
	if err != nil {
		s.writeJSON(w, "agents", status, map[string]string{"error": err.Error()})
		return
	}
	var req askRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, "agents", http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeJSON(w, "agents", http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	reply, ok := s.reply(id, req.Query)
	if !ok {
		s.writeJSON(w, "agents", http.StatusNotFound, map[string]string{"error": "unknown agent " + id})
		return
	}
	s.writeJSON(w, "agents", http.StatusOK, askResponse{Reply: reply})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, "notify", http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	body, status, err := s.readBody(w, r)
	if err != nil {
		s.writeJSON(w, "notify", status, map[string]string{"error": err.Error()})
		return
	}
	n := Notification{
		ID:         uuid.NewString(),
		Name:       r.PathValue("name"),
		Payload:    body,
		ReceivedAt: s.clock().UTC(),
	}
	n.Normalize()
	if err := n.Validate(); err != nil {
		s.writeJSON(w, "notify", http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.processor.HandleNotification(n); err != nil {
		s.logger.Printf("bridge: processor error: %v", err)
		s.writeJSON(w, "notify", http.StatusInternalServerError, map[string]string{"error": "notification processing failed"})
		return
	}
	s.logger.Printf("bridge: notification %s (%s)", n.Name, n.ID)
	s.writeJSON(w, "notify", http.StatusAccepted, notifyResponse{Status: "accepted", ID: n.ID})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	if r.Body == nil {
		return nil, http.StatusBadRequest, errors.New("empty body")
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.Limits.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("payload exceeds limit")
		}
		return nil, http.StatusBadRequest, errors.New("unable to read body")
	}
	return body, http.StatusOK, nil
}

// reply picks the canned answer for agent id. Unknown ids are rejected when a
// roster is configured.
func (s *Server) reply(id, query string) (string, bool) {
	if custom, ok := s.settings.Replies[id]; ok {
		return custom, true
	}
	name := id
	if len(s.agents) > 0 {
		agent, ok := s.agents[id]
		if !ok {
			return "", false
		}
		name = agent.Name
	}
	return fmt.Sprintf("🤖 %s here. Noted %q, I'll fold it into my next update.", name, strings.TrimSpace(query)), true
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, payload any) {
	s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
