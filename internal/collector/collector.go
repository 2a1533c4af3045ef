// internal/collector/collector.go
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// DefaultBatchSize caps how many records one analysis cycle consumes
const DefaultBatchSize = 1000

// BatchSource delivers the next batch of unconsumed log records.
// Implementations are best-effort: on any transport failure they return
// an empty batch and the caller retries next cycle.
type BatchSource interface {
	FetchBatch(ctx context.Context) []logstore.LogRecord
}

// StoreCollector pulls unconsumed records from the in-process log store
type StoreCollector struct {
	store     *logstore.Store
	batchSize int
}

// NewStoreCollector creates a collector backed by the local log store
func NewStoreCollector(store *logstore.Store, batchSize int) *StoreCollector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &StoreCollector{store: store, batchSize: batchSize}
}

// FetchBatch returns records appended since the previous call
func (c *StoreCollector) FetchBatch(_ context.Context) []logstore.LogRecord {
	return c.store.Unconsumed(c.batchSize)
}

// HTTPCollector pulls logs from a remote monitoring service
type HTTPCollector struct {
	baseURL string
	limit   int
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPCollector creates a collector that polls baseURL for logs
func NewHTTPCollector(baseURL string, limit int, logger *zap.Logger) *HTTPCollector {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return &HTTPCollector{
		baseURL: baseURL,
		limit:   limit,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

type logsResponse struct {
	Logs []logstore.LogRecord `json:"logs"`
}

// FetchBatch GETs recent logs from the monitoring service. Transport
// failures produce a warning and an empty batch, never an error.
func (c *HTTPCollector) FetchBatch(ctx context.Context) []logstore.LogRecord {
	var out logsResponse

	err := retry.Do(
		func() error {
			return c.fetch(ctx, &out)
		},
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.logger.Warn("log fetch failed, skipping cycle",
			zap.String("url", c.baseURL),
			zap.Error(err))
		return nil
	}
	return out.Logs
}

func (c *HTTPCollector) fetch(ctx context.Context, out *logsResponse) error {
	url := fmt.Sprintf("%s/api/logs?limit=%d", c.baseURL, c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("collector: building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("collector: fetching logs: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("collector: decoding response: %w", err)
	}
	return nil
}
