// internal/optimizer/ttl.go
package optimizer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/FairForge/edgeplane/internal/logstore"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Optimization methods reported on recommendations
const (
	MethodRuleBased  = "rule-based"
	MethodModelBased = "model-based"
)

// Tuning thresholds for the rule engine
const (
	DefaultMinSamples     = 5
	DefaultStatsCapacity  = 10000
	DefaultSpikeMinRecent = 3

	highTrafficThreshold     = 50
	moderateTrafficThreshold = 20
	lowHitRatioThreshold     = 0.3

	spikeWindow = 5 * time.Minute
	spikeFactor = 3

	maxWindowEntries = 512
)

// Base TTLs in seconds by file type
var baseTTLs = map[string]int{
	"image":   3600,
	"css":     1800,
	"js":      1800,
	"html":    300,
	"json":    600,
	"font":    86400,
	"video":   7200,
	"default": 1800,
}

var fileTypes = map[string]string{
	".jpg":   "image",
	".jpeg":  "image",
	".png":   "image",
	".gif":   "image",
	".webp":  "image",
	".css":   "css",
	".js":    "js",
	".html":  "html",
	".htm":   "html",
	".json":  "json",
	".woff":  "font",
	".woff2": "font",
	".ttf":   "font",
	".mp4":   "video",
	".webm":  "video",
}

// FileStats tracks per-path traffic observed across analysis cycles
type FileStats struct {
	TotalRequests  int64
	CacheHits      int64
	CacheMisses    int64
	LastSeen       string
	FileType       string
	RecentRequests []time.Time
}

// StatsSnapshot is the stats summary embedded in a recommendation
type StatsSnapshot struct {
	TotalRequests int64  `json:"total_requests"`
	CacheHitRatio string `json:"cache_hit_ratio"`
	FileType      string `json:"file_type"`
}

// TTLRecommendation is a recommended cache lifetime for one path
type TTLRecommendation struct {
	File           string        `json:"file"`
	RecommendedTTL int           `json:"recommended_ttl"`
	TTLHuman       string        `json:"ttl_human"`
	Reason         string        `json:"reason"`
	Stats          StatsSnapshot `json:"stats"`
	GeneratedAt    time.Time     `json:"timestamp"`
	Method         string        `json:"optimization_method"`
}

// Advisor replaces the rule-based TTL calculation with an external
// model. Failures fall back to the rule path.
type Advisor interface {
	RecommendTTL(ctx context.Context, file string, snap StatsSnapshot, spike bool) (ttl int, reason string, err error)
}

// Config tunes the optimizer thresholds
type Config struct {
	MinSamples     int
	StatsCapacity  int
	SpikeMinRecent int
}

func (c *Config) applyDefaults() {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.StatsCapacity <= 0 {
		c.StatsCapacity = DefaultStatsCapacity
	}
	if c.SpikeMinRecent <= 0 {
		c.SpikeMinRecent = DefaultSpikeMinRecent
	}
}

// Optimizer derives TTL recommendations from observed traffic.
// Per-path stats are LRU-bounded; the least recently seen paths are
// evicted when the catalog exceeds capacity.
type Optimizer struct {
	cfg     Config
	stats   *lru.Cache[string, *FileStats]
	advisor Advisor
	logger  *zap.Logger
}

// NewOptimizer creates a TTL optimizer. advisor may be nil for pure
// rule-based operation.
func NewOptimizer(cfg Config, advisor Advisor, logger *zap.Logger) *Optimizer {
	cfg.applyDefaults()
	stats, _ := lru.New[string, *FileStats](cfg.StatsCapacity)
	return &Optimizer{
		cfg:     cfg,
		stats:   stats,
		advisor: advisor,
		logger:  logger,
	}
}

// Analyze folds a batch of log records into the per-path stats and
// emits a recommendation for every path with enough samples
func (o *Optimizer) Analyze(ctx context.Context, batch []logstore.LogRecord) []TTLRecommendation {
	now := time.Now().UTC()
	o.updateStats(batch, now)

	var recs []TTLRecommendation
	for _, path := range o.stats.Keys() {
		stats, ok := o.stats.Peek(path)
		if !ok || stats.TotalRequests < int64(o.cfg.MinSamples) {
			continue
		}
		recs = append(recs, o.recommend(ctx, path, stats, now))
	}
	return recs
}

// Tracked returns the number of paths with accumulated stats
func (o *Optimizer) Tracked() int {
	return o.stats.Len()
}

func (o *Optimizer) updateStats(batch []logstore.LogRecord, now time.Time) {
	for _, rec := range batch {
		if rec.RequestPath == "" {
			continue
		}

		stats, ok := o.stats.Get(rec.RequestPath)
		if !ok {
			stats = &FileStats{FileType: DetectFileType(rec.RequestPath)}
			o.stats.Add(rec.RequestPath, stats)
		}

		stats.TotalRequests++
		stats.LastSeen = rec.Timestamp
		if rec.CacheStatus == logstore.StatusHit {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
		}

		if ts, err := rec.Time(); err == nil {
			stats.RecentRequests = append(stats.RecentRequests, ts)
		}
		stats.RecentRequests = trimWindow(stats.RecentRequests, now)
	}
}

// trimWindow keeps only timestamps young enough to matter for spike
// detection, capped so a single hot path cannot grow without bound
func trimWindow(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-2 * spikeWindow)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	times = times[start:]
	if len(times) > maxWindowEntries {
		times = times[len(times)-maxWindowEntries:]
	}
	return times
}

func (o *Optimizer) recommend(ctx context.Context, path string, stats *FileStats, now time.Time) TTLRecommendation {
	hitRatio := float64(stats.CacheHits) / float64(stats.TotalRequests)
	spike := o.detectSpike(stats.RecentRequests, now)
	snap := StatsSnapshot{
		TotalRequests: stats.TotalRequests,
		CacheHitRatio: fmt.Sprintf("%.2f%%", hitRatio*100),
		FileType:      stats.FileType,
	}

	if o.advisor != nil {
		ttl, reason, err := o.advisor.RecommendTTL(ctx, path, snap, spike)
		if err == nil {
			return TTLRecommendation{
				File:           path,
				RecommendedTTL: ttl,
				TTLHuman:       FormatTTL(ttl),
				Reason:         reason,
				Stats:          snap,
				GeneratedAt:    now,
				Method:         MethodModelBased,
			}
		}
		o.logger.Warn("model TTL recommendation failed, using rules",
			zap.String("file", path),
			zap.Error(err))
	}

	ttl, reason := ruleBasedTTL(stats, hitRatio, spike)
	return TTLRecommendation{
		File:           path,
		RecommendedTTL: ttl,
		TTLHuman:       FormatTTL(ttl),
		Reason:         reason,
		Stats:          snap,
		GeneratedAt:    now,
		Method:         MethodRuleBased,
	}
}

// ruleBasedTTL applies the TTL rules in a fixed order. Each multiplier
// truncates to whole seconds before the next applies; a spike doubles
// the fully adjusted value.
func ruleBasedTTL(stats *FileStats, hitRatio float64, spike bool) (int, string) {
	ttl := baseTTLs[stats.FileType]
	if ttl == 0 {
		ttl = baseTTLs["default"]
	}

	var reasons []string
	switch {
	case stats.TotalRequests > highTrafficThreshold:
		ttl = int(float64(ttl) * 2.0)
		reasons = append(reasons, fmt.Sprintf("High traffic (%d requests) - increased TTL for better cache efficiency", stats.TotalRequests))
	case stats.TotalRequests > moderateTrafficThreshold:
		ttl = int(float64(ttl) * 1.5)
		reasons = append(reasons, fmt.Sprintf("Moderate traffic (%d requests) - slightly increased TTL", stats.TotalRequests))
	default:
		reasons = append(reasons, fmt.Sprintf("Normal traffic (%d requests) - using standard TTL", stats.TotalRequests))
	}

	if hitRatio < lowHitRatioThreshold {
		ttl = int(float64(ttl) * 1.5)
		reasons = append(reasons, fmt.Sprintf("Low cache hit ratio (%.2f%%) - increasing TTL", hitRatio*100))
	}

	if spike {
		ttl *= 2
		reasons = append(reasons, "Traffic spike detected - doubled TTL to reduce origin load")
	}

	return ttl, strings.Join(reasons, " | ")
}

// detectSpike compares the request count in the last five minutes with
// the five minutes before that
func (o *Optimizer) detectSpike(times []time.Time, now time.Time) bool {
	recentCutoff := now.Add(-spikeWindow)
	previousCutoff := now.Add(-2 * spikeWindow)

	recent, previous := 0, 0
	for _, ts := range times {
		switch {
		case ts.After(recentCutoff):
			recent++
		case ts.After(previousCutoff):
			previous++
		}
	}

	return recent >= o.cfg.SpikeMinRecent && recent > previous*spikeFactor
}

// DetectFileType maps a request path to a coarse file type
func DetectFileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ft, ok := fileTypes[ext]; ok {
		return ft
	}
	return "default"
}

// FormatTTL renders a TTL in compact human-readable form
func FormatTTL(seconds int) string {
	switch {
	case seconds >= 86400:
		return fmt.Sprintf("%dd", seconds/86400)
	case seconds >= 3600:
		return fmt.Sprintf("%dh", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
