package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/db"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/telemetry"
)

type fakeStatus struct {
	snap telemetry.Snapshot
	line string
}

func (f *fakeStatus) Latest() (telemetry.Snapshot, string) { return f.snap, f.line }
func (f *fakeStatus) Labels() signal.Labels                 { return signal.DefaultLabels }

func setupTestServer(t *testing.T) (*Server, *sql.DB, *protocol.Queue) {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	status := &fakeStatus{
		snap: telemetry.Snapshot{
			Mode:     model.ModeID{Type: model.Heat, Index: 1},
			ModeName: "wHEAT",
			Inputs:   signal.R | signal.W,
			Outputs:  signal.W | signal.Failsafe,
		},
		line: "2026-10-19T07:30:15 S:2:1 wHEAT I:R,W O:R,W",
	}
	q := protocol.NewQueue(1)
	return NewServer(database, status, q, NewHub()), database, q
}

func TestGetStatus(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "wHEAT", resp["mode_name"])
	assert.Equal(t, "R,W", resp["active_inputs"])
	assert.Equal(t, "R,W", resp["active_outputs"])
	assert.Contains(t, resp["line"], "S:2:1")
}

func TestPostCommand(t *testing.T) {
	server, _, q := setupTestServer(t)
	router := server.Router()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"queued", `{"command":"HVAC TYPE=2 MODE=1"}`, http.StatusAccepted},
		{"queue full", `{"command":"RH"}`, http.StatusServiceUnavailable},
		{"bad json", `{`, http.StatusBadRequest},
		{"empty", `{"command":"  "}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewBufferString(tc.body)))
			assert.Equal(t, tc.code, w.Code)
		})
	}

	cmd, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, protocol.Command{Text: "HVAC TYPE=2 MODE=1", ToMe: true, Source: protocol.SourceAPI}, cmd)
}

func TestGetSafetyEvents(t *testing.T) {
	server, database, _ := setupTestServer(t)
	router := server.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/safety-events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	at := time.Date(2026, 1, 5, 6, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := db.InsertSafetyEvent(database, model.SafetyEvent{At: at, Kind: model.SafetyEventTrip, InletCx10: int16(330 + i)})
		require.NoError(t, err)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/safety-events?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var events []model.SafetyEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, int16(332), events[0].InletCx10)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/safety-events?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	server, _, _ := setupTestServer(t)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/zones", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTelemetryStream(t *testing.T) {
	server, _, _ := setupTestServer(t)
	srv := httptest.NewServer(server.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	server.hub.Publish(telemetry.Report{Line: "2026-10-19T07:30:15 S:0:0 PASS I:R O:"})
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T07:30:15 S:0:0 PASS I:R O:", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return server.hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
