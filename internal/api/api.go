package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/db"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/telemetry"
)

const defaultEventLimit = 50

// StatusSource provides the latest loop snapshot.
type StatusSource interface {
	Latest() (telemetry.Snapshot, string)
	Labels() signal.Labels
}

type Server struct {
	db       *sql.DB
	status   StatusSource
	commands *protocol.Queue
	hub      *Hub
}

type StatusResponse struct {
	telemetry.Snapshot
	Line          string `json:"line"`
	ActiveInputs  string `json:"active_inputs"`
	ActiveOutputs string `json:"active_outputs"`
}

type CommandRequest struct {
	Command string `json:"command"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(database *sql.DB, status StatusSource, commands *protocol.Queue, hub *Hub) *Server {
	return &Server{
		db:       database,
		status:   status,
		commands: commands,
		hub:      hub,
	}
}

func (s *Server) Router() http.Handler {
	router := httprouter.New()
	router.GET("/api/status", s.getStatus)
	router.POST("/api/command", s.postCommand)
	router.GET("/api/safety-events", s.getSafetyEvents)
	router.GET("/api/telemetry", s.telemetry)
	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		router.ServeHTTP(w, r)
	})
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap, line := s.status.Latest()
	labels := s.status.Labels()
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Snapshot:      snap,
		Line:          line,
		ActiveInputs:  labels.Active(snap.Inputs.Input()),
		ActiveOutputs: labels.Active(snap.Outputs),
	})
}

// postCommand queues a protocol line as if it arrived addressed to this
// node. The response only says whether it was queued; handling happens on
// the next loop iteration.
func (s *Server) postCommand(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	text := strings.TrimSpace(req.Command)
	if text == "" {
		s.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	if !s.commands.Enqueue(protocol.Command{Text: text, ToMe: true, Source: protocol.SourceAPI}) {
		s.writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}
	log.Info().Str("command", text).Msg("Command queued via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) getSafetyEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := db.GetSafetyEvents(s.db, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get safety events")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []model.SafetyEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) telemetry(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.hub.serve(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
