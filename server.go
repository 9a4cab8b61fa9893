package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"auralytics/agent"
	"auralytics/config"
	"auralytics/logger"
)

// Server exposes the agent over HTTP for the dashboard frontend.
type Server struct {
	service *agent.Service
	cfg     config.Config
	logger  *logger.Logger
}

// NewServer wires the HTTP layer over the agent service.
func NewServer(service *agent.Service, cfg config.Config, log *logger.Logger) *Server {
	return &Server{service: service, cfg: cfg, logger: log}
}

// chatRequestBody is the dashboard's chat payload.
type chatRequestBody struct {
	Messages  []agent.ConversationMessage `json:"messages"`
	AccountID int                         `json:"accountId"`
	Timezone  string                      `json:"timezone,omitempty"`
	// DefaultRange mirrors the dashboard's selected date filter.
	DefaultRange *agent.DateRange `json:"defaultRange,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Handler builds the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/aura/chat", s.handleChat)
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// Run starts the HTTP listener and blocks.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Logf("Listening on %s", s.cfg.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat runs one full agent turn. The response always carries text for
// the user; file payloads travel base64-encoded in the same body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	requestID := uuid.New().String()
	start := time.Now()

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Logf("[HTTP %s] bad request: %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.AccountID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "accountId is required"})
		return
	}
	if len(body.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "messages is required"})
		return
	}

	timezone := body.Timezone
	if timezone == "" {
		timezone = s.cfg.DefaultTimezone
	}

	s.logger.Logf("[HTTP %s] chat request: account=%d messages=%d", requestID, body.AccountID, len(body.Messages))

	resp, err := s.service.Chat(r.Context(), agent.ChatRequest{
		Messages: body.Messages,
		Account: agent.AccountContext{
			AccountID: body.AccountID,
			Timezone:  timezone,
		},
		DefaultRange: body.DefaultRange,
	})
	if err != nil {
		s.logger.Logf("[HTTP %s] chat failed: %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	s.logger.Logf("[HTTP %s] done in %s (file=%v)", requestID, time.Since(start).Round(time.Millisecond), resp.File != nil)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Println("failed to encode response:", err)
	}
}
