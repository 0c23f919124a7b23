// Package api provides HTTP handlers and routing for the agentflow service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP handlers and dependencies.
type Server struct {
	router   *mux.Router
	handlers *Handlers
}

// NewServer creates a new API server with the given handlers.
func NewServer(h *Handlers) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router for use with http.Server. CORS
// wraps the router from the outside: mux middleware only runs for matched
// routes, and preflight OPTIONS requests match none of them.
func (s *Server) Router() http.Handler {
	return s.handlers.CORSMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	// Health and diagnostics endpoints
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Agent management. Fixed-path routes register before the {id} routes
	// so "synthesize" and "execute-adhoc" are never captured as ids.
	api.HandleFunc("/agents", s.handlers.CreateAgent).Methods("POST")
	api.HandleFunc("/agents", s.handlers.ListAgents).Methods("GET")
	api.HandleFunc("/agents/synthesize", s.handlers.SynthesizeAgent).Methods("POST")
	api.HandleFunc("/agents/execute-adhoc", s.handlers.ExecuteAdhoc).Methods("POST")
	api.HandleFunc("/agents/{id}", s.handlers.GetAgent).Methods("GET")
	api.HandleFunc("/agents/{id}", s.handlers.UpdateAgent).Methods("PUT")
	api.HandleFunc("/agents/{id}", s.handlers.DeleteAgent).Methods("DELETE")

	// Execution triggering and history
	api.HandleFunc("/agents/{id}/execute", s.handlers.ExecuteAgent).Methods("POST")
	api.HandleFunc("/agents/{id}/run", s.handlers.ExecuteAgent).Methods("POST")
	api.HandleFunc("/agents/{id}/executions", s.handlers.ListAgentExecutions).Methods("GET")
	api.HandleFunc("/executions/{id}", s.handlers.GetExecution).Methods("GET")
	api.HandleFunc("/executions/{id}/logs/stream", s.handlers.StreamExecutionLogs).Methods("GET")

	// Store diagnostics
	api.HandleFunc("/store/info", s.handlers.StoreInfo).Methods("GET")

	// Apply middleware
	s.router.Use(s.handlers.RateLimitMiddleware)
	s.router.Use(s.handlers.LoggingMiddleware)
	s.router.Use(s.handlers.RecoveryMiddleware)
}
