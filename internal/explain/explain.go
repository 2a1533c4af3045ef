// internal/explain/explain.go
package explain

import (
	"context"
	"fmt"
	"sync"

	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/FairForge/edgeplane/internal/optimizer"
)

// Generation methods reported on explanations
const (
	MethodTemplate = "template-based"
	MethodModel    = "model-based"
)

// Explanation is a human-readable rationale for one request's cache,
// routing, and TTL outcome
type Explanation struct {
	RequestID     string `json:"request_id"`
	RequestPath   string `json:"request_path"`
	Timestamp     string `json:"timestamp"`
	EdgeServer    string `json:"edge_server"`
	CacheStatus   string `json:"cache_status"`
	TTL           int    `json:"ttl"`
	TTLHuman      string `json:"ttl_human"`
	CacheReason   string `json:"cache_reason"`
	RoutingReason string `json:"routing_reason"`
	TTLReason     string `json:"ttl_reason"`
	Summary       string `json:"summary"`
	Method        string `json:"generation_method"`
}

// Explainer produces an explanation for a log record. Implementations
// never fail: the model-backed variant falls back to templates.
type Explainer interface {
	Explain(ctx context.Context, rec logstore.LogRecord) Explanation
}

// routingReasons maps known edge servers to fixed explanations
var routingReasons = map[string]string{
	"edge1":     "Routed to Edge Server 1 (US East region) - closest to your location",
	"edge2":     "Routed to Edge Server 2 (EU West region) - load balanced for optimal performance",
	"edge-us":   "Routed to US Edge - geographical routing based on client location",
	"edge-eu":   "Routed to EU Edge - geographical routing based on client location",
	"edge-asia": "Routed to Asia Edge - geographical routing based on client location",
}

// ttlReasons maps file types to TTL rationale formats
var ttlReasons = map[string]string{
	"image": "TTL set to %s - images are static and safe to cache longer",
	"css":   "TTL set to %s - stylesheets change infrequently",
	"js":    "TTL set to %s - scripts are versioned and safe to cache",
	"html":  "TTL set to %s - HTML may update frequently, shorter cache",
	"font":  "TTL set to %s - fonts rarely change, long cache duration",
	"video": "TTL set to %s - video files are large and static",
}

// TemplateExplainer composes explanations from fixed lookup tables so
// the same input always yields the same output
type TemplateExplainer struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTemplateExplainer creates the deterministic explainer
func NewTemplateExplainer() *TemplateExplainer {
	return &TemplateExplainer{seen: make(map[string]struct{})}
}

// Explain builds the three rationale strings for one record
func (e *TemplateExplainer) Explain(_ context.Context, rec logstore.LogRecord) Explanation {
	first := e.firstSight(rec.RequestPath)
	cacheReason := explainCacheStatus(rec.RequestPath, rec.CacheStatus, first)

	return Explanation{
		RequestID:     rec.RequestID,
		RequestPath:   rec.RequestPath,
		Timestamp:     rec.Timestamp,
		EdgeServer:    rec.EdgeServer,
		CacheStatus:   rec.CacheStatus,
		TTL:           rec.TTL,
		TTLHuman:      formatTTLLong(rec.TTL),
		CacheReason:   cacheReason,
		RoutingReason: explainRouting(rec.EdgeServer),
		TTLReason:     explainTTL(rec.RequestPath, rec.TTL),
		Summary:       cacheReason,
		Method:        MethodTemplate,
	}
}

// firstSight records the path as seen and reports whether this was the
// first observation. Affects wording only.
func (e *TemplateExplainer) firstSight(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[path]; ok {
		return false
	}
	e.seen[path] = struct{}{}
	return true
}

func explainCacheStatus(path, status string, first bool) string {
	switch status {
	case logstore.StatusHit:
		return fmt.Sprintf("Cache HIT: File '%s' was found in edge cache, served from memory (fast!)", path)
	case logstore.StatusMiss:
		if first {
			return fmt.Sprintf("Cache MISS: File '%s' requested for the first time in this region, fetched from origin", path)
		}
		return fmt.Sprintf("Cache MISS: File '%s' not in cache (expired or invalidated), fetched from origin", path)
	case logstore.StatusExpired:
		return fmt.Sprintf("Cache EXPIRED: File '%s' was cached but TTL expired, revalidating with origin", path)
	case logstore.StatusBypass:
		return fmt.Sprintf("Cache BYPASS: File '%s' is marked as non-cacheable, always fetched from origin", path)
	default:
		return fmt.Sprintf("Unknown cache status: %s", status)
	}
}

func explainRouting(edgeServer string) string {
	if reason, ok := routingReasons[edgeServer]; ok {
		return reason
	}
	return fmt.Sprintf("Routed to %s - load balancer selected based on current traffic", edgeServer)
}

func explainTTL(path string, ttl int) string {
	if ttl == 0 {
		return "TTL is 0 - file is not cached"
	}

	human := formatTTLLong(ttl)
	fileType := optimizer.DetectFileType(path)

	reason := fmt.Sprintf("TTL set to %s - standard cache duration for this file type", human)
	if format, ok := ttlReasons[fileType]; ok {
		reason = fmt.Sprintf(format, human)
	}

	if ttl > 3600 {
		reason += " (optimized: increased due to high traffic)"
	}
	return reason
}

// formatTTLLong renders a TTL in spelled-out form for explanations
func formatTTLLong(seconds int) string {
	switch {
	case seconds >= 86400:
		return fmt.Sprintf("%d day(s)", seconds/86400)
	case seconds >= 3600:
		return fmt.Sprintf("%d hour(s)", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%d minute(s)", seconds/60)
	default:
		return fmt.Sprintf("%d second(s)", seconds)
	}
}
