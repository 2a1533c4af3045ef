// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FairForge/edgeplane/internal/config"
	"github.com/FairForge/edgeplane/internal/configstore"
	"github.com/FairForge/edgeplane/internal/explain"
	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ingest rate limit, shared across edge servers
const (
	ingestRatePerSecond = 500
	ingestBurst         = 1000
)

// Server exposes the monitoring ingest API and the read-only
// control-plane API
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server

	logs         *logstore.Store
	store        *configstore.Store
	explanations *explain.History
	optimizer    *optimizer.Optimizer
	analyzer     *prefetch.Analyzer

	ingestLimiter *rate.Limiter
	startTime     time.Time
}

// NewServer creates the HTTP server with all routes registered
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	logs *logstore.Store,
	store *configstore.Store,
	explanations *explain.History,
	opt *optimizer.Optimizer,
	analyzer *prefetch.Analyzer,
) *Server {
	s := &Server{
		config:        cfg,
		logger:        logger,
		router:        mux.NewRouter(),
		logs:          logs,
		store:         store,
		explanations:  explanations,
		optimizer:     opt,
		analyzer:      analyzer,
		ingestLimiter: rate.NewLimiter(rate.Limit(ingestRatePerSecond), ingestBurst),
		startTime:     time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// monitoring ingest API (edge servers)
	s.router.Handle("/api/logs/ingest", s.rateLimit(http.HandlerFunc(s.handleIngestLog))).Methods("POST")
	s.router.Handle("/api/logs/batch", s.rateLimit(http.HandlerFunc(s.handleIngestBatch))).Methods("POST")
	s.router.HandleFunc("/api/logs/clear", s.handleClearLogs).Methods("DELETE")
	s.router.HandleFunc("/api/logs/{request_id}", s.handleGetLog).Methods("GET")
	s.router.HandleFunc("/api/logs", s.handleGetLogs).Methods("GET")
	s.router.HandleFunc("/api/stats", s.handleLogStats).Methods("GET")

	// control-plane read API
	s.router.HandleFunc("/api/v1/recommendations/ttl", s.handleTTLRecommendations).Methods("GET")
	s.router.HandleFunc("/api/v1/recommendations/prefetch", s.handlePrefetchRecommendations).Methods("GET")
	s.router.HandleFunc("/api/v1/explainability/recent", s.handleRecentExplanations).Methods("GET")
	s.router.HandleFunc("/api/v1/explainability/{request_id}", s.handleExplanation).Methods("GET")
	s.router.HandleFunc("/api/v1/config/history", s.handleConfigHistory).Methods("GET")
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Start runs the HTTP server until Shutdown
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "edgeplane control plane",
		"status":  "running",
		"features": []string{
			"TTL Optimization",
			"Smart Prefetching",
			"Explainability Layer",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": "0.1.0",
		"uptime":  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ready": true,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", zap.Error(err))
	}
}
