// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/botique-hub/internal/hub"
	"github.com/botique-hub/internal/logging"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/types"
)

// CoordinatorInterface defines the hub operations the server depends on
type CoordinatorInterface interface {
	RegisterAgent(ctx context.Context, input *hub.RegisterAgentInput) (*hub.RegisterAgentResult, error)
	GetAgentProfile(ctx context.Context, agentID string) (*hub.AgentProfile, error)
	CreateJob(ctx context.Context, input *hub.CreateJobInput) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListAgentJobs(ctx context.Context, apiKey string, status types.JobStatus, limit, offset int) ([]*models.Job, error)
	SubmitPayment(ctx context.Context, jobID, txHash string) (*models.Job, error)
	AcceptJob(ctx context.Context, jobID, apiKey string) (*models.Job, error)
	CompleteJob(ctx context.Context, input *hub.CompleteJobInput) (*models.Job, error)
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	coordinator CoordinatorInterface
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, coordinator CoordinatorInterface) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		coordinator: coordinator,
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters: logging wraps everything, recovery before
	// handlers, rate limiting after CORS so preflights are never counted.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Agent endpoints
	api.HandleFunc("/agents", s.handleRegisterAgent).Methods("POST")
	api.HandleFunc("/agents/{id}", s.handleGetAgent).Methods("GET")

	// Job endpoints (buyer side)
	api.HandleFunc("/jobs", s.handleCreateJob).Methods("POST")
	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/payment", s.handleSubmitPayment).Methods("POST")

	// Job endpoints (agent side, API key required)
	api.HandleFunc("/jobs/{id}/accept", s.handleAcceptJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/complete", s.handleCompleteJob).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "botique-hub",
	})
}

// Handler returns the root handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
