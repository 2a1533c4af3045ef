// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/FairForge/edgeplane/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		duration := time.Since(start)
		metrics.RecordRequest(r.Method, path, strconv.Itoa(rec.status), duration)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration))
	})
}

// rateLimit protects the ingest endpoints from runaway edge servers
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ingestLimiter.Allow() {
			s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": "ingest rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
