// internal/logstore/store.go
package logstore

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCapacity bounds the in-memory log buffer
const DefaultCapacity = 10000

// Store is a bounded, time-ordered buffer of request-log records.
// Records are appended by the ingest API and consumed in batches by the
// analysis loop; when the buffer is full the oldest records are evicted.
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	capacity int
	records  []LogRecord

	// absolute counters so the consumption cursor survives eviction
	evicted  int64
	consumed int64
	dropped  int64
}

// NewStore creates a log store holding at most capacity records
func NewStore(capacity int, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		logger:   logger,
		capacity: capacity,
		records:  make([]LogRecord, 0, capacity),
	}
}

// Append validates and stores a record, generating a request ID when the
// edge server did not send one. Malformed records are rejected so they
// never reach analysis.
func (s *Store) Append(rec LogRecord) (LogRecord, error) {
	if err := rec.Validate(); err != nil {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return rec, err
	}
	if rec.RequestID == "" {
		rec.RequestID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		over := len(s.records) - s.capacity
		s.records = s.records[over:]
		s.evicted += int64(over)
	}
	return rec, nil
}

// AppendBatch stores a batch of records, skipping malformed entries.
// Returns the number of records accepted.
func (s *Store) AppendBatch(recs []LogRecord) int {
	accepted := 0
	for _, rec := range recs {
		if _, err := s.Append(rec); err != nil {
			s.logger.Warn("dropping malformed log record",
				zap.String("path", rec.RequestPath),
				zap.Error(err))
			continue
		}
		accepted++
	}
	return accepted
}

// Unconsumed returns up to max records not yet handed to the analysis
// loop and advances the consumption cursor past them.
func (s *Store) Unconsumed(max int) []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	// records evicted before consumption are gone for good
	if s.consumed < s.evicted {
		s.consumed = s.evicted
	}

	start := int(s.consumed - s.evicted)
	if start >= len(s.records) {
		return nil
	}
	end := len(s.records)
	if max > 0 && start+max < end {
		end = start + max
	}

	batch := make([]LogRecord, end-start)
	copy(batch, s.records[start:end])
	s.consumed += int64(len(batch))
	return batch
}

// Recent returns the newest records, optionally filtered by edge server
// and cache status. limit <= 0 means no limit.
func (s *Store) Recent(limit int, edgeServer, cacheStatus string) []LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]LogRecord, 0, len(s.records))
	for _, rec := range s.records {
		if edgeServer != "" && rec.EdgeServer != edgeServer {
			continue
		}
		if cacheStatus != "" && rec.CacheStatus != cacheStatus {
			continue
		}
		filtered = append(filtered, rec)
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// ByRequestID finds the most recent record with the given request ID
func (s *Store) ByRequestID(id string) (LogRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].RequestID == id {
			return s.records[i], true
		}
	}
	return LogRecord{}, false
}

// Len returns the number of buffered records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops all buffered records and resets the consumption cursor
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
	s.evicted = 0
	s.consumed = 0
}

// EdgeStats aggregates request counts for one edge server
type EdgeStats struct {
	Requests  int64 `json:"requests"`
	CacheHits int64 `json:"cache_hits"`
}

// Stats summarizes the buffered records for the monitoring API
type Stats struct {
	TotalRequests int64                `json:"total_requests"`
	CacheHits     int64                `json:"cache_hits"`
	CacheMisses   int64                `json:"cache_misses"`
	CacheHitRate  string               `json:"cache_hit_rate"`
	Dropped       int64                `json:"dropped_records"`
	EdgeServers   map[string]EdgeStats `json:"edge_servers"`
}

// Aggregate computes summary statistics over the buffered records
func (s *Store) Aggregate() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Dropped: s.dropped, EdgeServers: make(map[string]EdgeStats)}
	for _, rec := range s.records {
		stats.TotalRequests++
		edge := rec.EdgeServer
		if edge == "" {
			edge = "unknown"
		}
		es := stats.EdgeServers[edge]
		es.Requests++
		if rec.CacheStatus == StatusHit {
			stats.CacheHits++
			es.CacheHits++
		}
		stats.EdgeServers[edge] = es
	}
	stats.CacheMisses = stats.TotalRequests - stats.CacheHits

	rate := 0.0
	if stats.TotalRequests > 0 {
		rate = float64(stats.CacheHits) / float64(stats.TotalRequests) * 100
	}
	stats.CacheHitRate = fmt.Sprintf("%.2f%%", rate)
	return stats
}
