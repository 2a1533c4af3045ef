// internal/api/handlers.go
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/FairForge/edgeplane/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) handleIngestLog(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "reading request body"})
		return
	}
	if err := validateLogPayload(body); err != nil {
		metrics.RecordIngest(0, 1)
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	var rec logstore.LogRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	stored, err := s.logs.Append(rec)
	if err != nil {
		metrics.RecordIngest(0, 1)
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	metrics.RecordIngest(1, 0)
	s.logger.Debug("log ingested",
		zap.String("edge", stored.EdgeServer),
		zap.String("path", stored.RequestPath),
		zap.String("cache_status", stored.CacheStatus))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"request_id": stored.RequestID,
	})
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	// bad entries are skipped, not the whole batch
	recs := make([]logstore.LogRecord, 0, len(raw))
	rejected := 0
	for _, item := range raw {
		if err := validateLogPayload(item); err != nil {
			rejected++
			s.logger.Warn("rejecting log record", zap.Error(err))
			continue
		}
		var rec logstore.LogRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			rejected++
			continue
		}
		recs = append(recs, rec)
	}

	accepted := s.logs.AppendBatch(recs)
	rejected += len(recs) - accepted
	metrics.RecordIngest(accepted, rejected)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"ingested": accepted,
		"rejected": rejected,
	})
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	logs := s.logs.Recent(limit, r.URL.Query().Get("edge_server"), r.URL.Query().Get("cache_status"))

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_logs":    s.logs.Len(),
		"returned_logs": len(logs),
		"logs":          logs,
	})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	rec, ok := s.logs.ByRequestID(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "log not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	s.logs.Clear()
	s.logger.Info("log store cleared")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "all logs cleared",
	})
}

func (s *Server) handleLogStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.logs.Aggregate())
}

func (s *Server) handleTTLRecommendations(w http.ResponseWriter, _ *http.Request) {
	cfg := s.store.TTLConfig()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_rules":     len(cfg),
		"recommendations": cfg,
		"description":     "Optimized TTL values for cached files",
	})
}

func (s *Server) handlePrefetchRecommendations(w http.ResponseWriter, _ *http.Request) {
	cfg := s.store.PrefetchConfig()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_rules":     len(cfg),
		"recommendations": cfg,
		"description":     "Prefetch rules based on observed access patterns",
	})
}

func (s *Server) handleRecentExplanations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	explanations := s.explanations.Recent(limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(explanations),
		"explanations": explanations,
	})
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	exp, ok := s.explanations.ByRequestID(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "request not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleConfigHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	history := s.store.History(limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_changes": len(history),
		"history":       history,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ttl_rules":         len(s.store.TTLConfig()),
		"prefetch_rules":    len(s.store.PrefetchConfig()),
		"files_analyzed":    s.optimizer.Tracked(),
		"patterns_detected": s.analyzer.PatternCount(),
		"status":            "operational",
	})
}

func queryInt(r *http.Request, key string, def int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return def
	}
	return n
}
