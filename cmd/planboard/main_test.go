package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/planboard/internal/responder"
)

func openTestStack(t *testing.T) *stack {
	t.Helper()
	t.Setenv("PLANBOARD_DELAY_SCALE", "0")
	st, err := openStack(context.Background(), stackOptions{projectDir: t.TempDir(), bridge: "off"})
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPrintBoardListsTasksAndEdges(t *testing.T) {
	st := openTestStack(t)
	var out bytes.Buffer
	printBoard(&out, st.board)

	text := out.String()
	assert.Contains(t, text, "T1 Design Post-Purchase Communication Flow")
	assert.Contains(t, text, "Message Flow Blueprint")
	assert.Contains(t, text, "T1 → T2")
	assert.Contains(t, text, "members: Creative Agent")
}

func TestAskPlaysScriptedWorkflow(t *testing.T) {
	st := openTestStack(t)
	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &out, st, "T1", responder.LuckyDrawPhrase))

	text := out.String()
	assert.Contains(t, text, "You:")
	assert.Contains(t, text, "K1 completed")
	assert.Contains(t, text, "The lucky draw website is now updated and live.")
}

func TestAskFallsBackWithoutEndpoints(t *testing.T) {
	st := openTestStack(t)
	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &out, st, "T1", "status?"))
	assert.Contains(t, out.String(), "Noted.")
}

func TestAskCallsConfiguredAgentEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": "echo " + body.Query})
	}))
	defer srv.Close()
	t.Setenv("PLANBOARD_AGENT_ENDPOINTS", "A1="+srv.URL+"/agents/A1")

	st := openTestStack(t)
	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &out, st, "T1", "draft the copy"))
	assert.Contains(t, out.String(), "Creative Agent: echo draft the copy")
}

func TestAskRejectsLockedTask(t *testing.T) {
	st := openTestStack(t)
	err := ask(context.Background(), &bytes.Buffer{}, st, "T2", "hello")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "requirements"))
}

func TestBridgeModeValidation(t *testing.T) {
	prev := flagBridge
	t.Cleanup(func() { flagBridge = prev })

	flagBridge = "ON"
	mode, err := bridgeMode()
	require.NoError(t, err)
	assert.Equal(t, "on", mode)

	flagBridge = "sometimes"
	_, err = bridgeMode()
	assert.Error(t, err)
}
