package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/planboard/internal/board"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func TestReplyText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "reply field", raw: `{"reply":"hi","response":"no"}`, want: "hi"},
		{name: "response field", raw: `{"response":"from response"}`, want: "from response"},
		{name: "result field", raw: `{"result":"done"}`, want: "done"},
		{name: "message field", raw: `{"message":"m"}`, want: "m"},
		{name: "null skipped", raw: `{"reply":null,"result":"r"}`, want: "r"},
		{name: "empty string wins", raw: `{"reply":"","result":"r"}`, want: ""},
		{name: "unknown object", raw: `{"other":1}`, want: `{"other":1}`},
		{name: "plain text", raw: "just text", want: "just text"},
		{name: "empty", raw: "  ", want: "✅ QA responded (200) but returned an empty body."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplyText("QA", 200, tt.raw))
		})
	}
}

func TestAskPostsQuery(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{"reply":"on it"}`))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := New(WithMetrics(metrics))
	reply, err := client.Ask(context.Background(), &board.Agent{ID: "A1", Name: "PO", Endpoint: srv.URL}, "status?")
	require.NoError(t, err)
	assert.Equal(t, "on it", reply)
	assert.Equal(t, map[string]string{"query": "status?"}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("A1", "ok")))
}

func TestAskNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := New(WithLogger(logger))
	agent := &board.Agent{ID: "A2", Name: "UX Agent", Endpoint: srv.URL}
	_, err := client.Ask(context.Background(), agent, "hello")
	require.Error(t, err)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Code)
	assert.Equal(t, "HTTP 502 Bad Gateway – boom\n", err.Error())
	assert.True(t, strings.HasPrefix(ErrorText(agent, err), "⚠️ UX Agent API error: HTTP 502"))
	assert.NotEmpty(t, logger.lines)
}

func TestAskWithoutEndpoint(t *testing.T) {
	_, err := New().Ask(context.Background(), &board.Agent{ID: "A3"}, "hi")
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestAskHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Ask(ctx, &board.Agent{ID: "A1", Endpoint: srv.URL}, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotify(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := New(WithMetrics(metrics))
	require.NoError(t, client.Notify(context.Background(), srv.URL))
	assert.Equal(t, "{}", body)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notifies.WithLabelValues("ok")))

	assert.ErrorIs(t, client.Notify(context.Background(), " "), ErrNoEndpoint)
}

func TestErrorTextDefaults(t *testing.T) {
	assert.Equal(t, "⚠️ Agent API error: Unknown error", ErrorText(nil, nil))
}
