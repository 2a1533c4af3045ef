// internal/logstore/record.go
package logstore

import (
	"errors"
	"fmt"
	"time"
)

// Cache lookup outcomes reported by edge servers
const (
	StatusHit     = "HIT"
	StatusMiss    = "MISS"
	StatusExpired = "EXPIRED"
	StatusBypass  = "BYPASS"
)

var (
	ErrMissingPath        = errors.New("logstore: request_path is required")
	ErrMissingTimestamp   = errors.New("logstore: timestamp is required")
	ErrInvalidCacheStatus = errors.New("logstore: invalid cache_status")
	ErrNegativeField      = errors.New("logstore: negative value")
)

// LogRecord is a single access-log entry from an edge server
type LogRecord struct {
	RequestID      string  `json:"request_id"`
	Timestamp      string  `json:"timestamp"`
	ClientIP       string  `json:"client_ip"`
	RequestPath    string  `json:"request_path"`
	RequestMethod  string  `json:"request_method"`
	CacheStatus    string  `json:"cache_status"`
	EdgeServer     string  `json:"edge_server"`
	TTL            int     `json:"ttl"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
	StatusCode     int     `json:"status_code"`
	BytesSent      int64   `json:"bytes_sent,omitempty"`
}

// Validate checks the fields a record needs to participate in analysis
func (r *LogRecord) Validate() error {
	if r.RequestPath == "" {
		return ErrMissingPath
	}
	if r.Timestamp == "" {
		return ErrMissingTimestamp
	}
	switch r.CacheStatus {
	case "", StatusHit, StatusMiss, StatusExpired, StatusBypass:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheStatus, r.CacheStatus)
	}
	if r.TTL < 0 {
		return fmt.Errorf("%w: ttl", ErrNegativeField)
	}
	if r.ResponseTimeMS < 0 {
		return fmt.Errorf("%w: response_time_ms", ErrNegativeField)
	}
	if r.BytesSent < 0 {
		return fmt.Errorf("%w: bytes_sent", ErrNegativeField)
	}
	return nil
}

// Time parses the record's ISO-8601 timestamp. Edge servers send either
// RFC3339 or a bare datetime without zone (treated as UTC).
func (r *LogRecord) Time() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an edge-server timestamp string
func ParseTimestamp(ts string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, ts)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
