// Package web exposes the chat agent over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evolyn/concierge/internal/agent"
	"github.com/evolyn/concierge/internal/buildinfo"
	"github.com/evolyn/concierge/internal/resolve"
)

// ChatService handles one chat turn. Implemented by agent.Orchestrator.
type ChatService interface {
	Chat(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id"`
	AccountID      string `json:"account_id,omitempty"`
	FacilityID     string `json:"facility_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	chat    ChatService
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, chat ChatService, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		chat:    chat,
		logger:  logger,
	}
}

// Handler builds the route table. Split from Start so tests can drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Method dispatch happens inside the handlers so unsupported
	// methods get the JSON 405 body rather than the mux default.
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Model calls dominate response time
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error":  message,
		"status": "error",
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *Server) notFound(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusNotFound, map[string]any{
		"error":               "Endpoint not found",
		"status":              "error",
		"available_endpoints": []string{"/", "/health", "/chat"},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleChatPost(w, r)
	case http.MethodGet:
		s.handleChatInfo(w, r)
	default:
		s.methodNotAllowed(w)
	}
}

func (s *Server) handleChatPost(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	req.UserID = strings.TrimSpace(req.UserID)
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.FacilityID = strings.TrimSpace(req.FacilityID)
	req.ConversationID = strings.TrimSpace(req.ConversationID)

	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "Message is required")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if req.AccountID == "" && req.FacilityID == "" {
		s.errorResponse(w, http.StatusBadRequest, "Either Account ID or Facility ID is required")
		return
	}

	resp, err := s.chat.Chat(r.Context(), agent.Request{
		Message:        req.Message,
		UserID:         req.UserID,
		AccountID:      req.AccountID,
		FacilityID:     req.FacilityID,
		ConversationID: req.ConversationID,
	})
	switch {
	case errors.Is(err, resolve.ErrMissingContext):
		s.errorResponse(w, http.StatusBadRequest, "Either Account ID or Facility ID is required")
		return
	case errors.Is(err, agent.ErrConversationNotFound):
		s.errorResponse(w, http.StatusNotFound, "Conversation not found")
		return
	case err != nil:
		s.logger.Error("chat failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Sorry, I encountered an error processing your request. Please try again.")
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"endpoint":    "/chat",
		"methods":     []string{"POST"},
		"description": "Send messages to the conversational agent",
		"payload_fields": map[string]string{
			"message":         "Required: your question or request",
			"user_id":         "Required: email of the requesting user",
			"account_id":      "Optional: account ID for context (at least one of account_id/facility_id required)",
			"facility_id":     "Optional: facility ID for context (at least one of account_id/facility_id required)",
			"conversation_id": "Optional: id of an existing conversation to continue",
		},
		"example_request": map[string]string{
			"message":    "Show me facility details",
			"user_id":    "rep@example.com",
			"account_id": "A-011977763",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"agent_ready": s.chat != nil,
		"message":     "Evolyn Concierge API is running",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Evolyn Concierge API",
		"version":     buildinfo.Version,
		"description": "A conversational agent for querying accounts, facilities, and notes",
		"endpoints": map[string]string{
			"/":       "This information page",
			"/health": "Health check",
			"/chat":   "Chat with the agent (POST) or get info (GET)",
		},
	})
}
