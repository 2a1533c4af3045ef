// internal/prefetch/analyzer.go
package prefetch

import (
	"fmt"
	"sort"
	"time"

	"github.com/FairForge/edgeplane/internal/logstore"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Defaults for sequence mining
const (
	DefaultSequenceWindow  = 5 * time.Second
	DefaultPairThreshold   = 3
	DefaultPatternCapacity = 10000

	minRelatedFiles = 2
	maxPrefetchSet  = 5
)

// MethodRuleBased marks rules produced by the counting heuristic
const MethodRuleBased = "rule-based"

// Rule recommends assets to prefetch when the trigger file is requested
type Rule struct {
	TriggerFile   string    `json:"trigger_file"`
	PrefetchFiles []string  `json:"prefetch_files"`
	Confidence    float64   `json:"confidence"`
	Reason        string    `json:"reason"`
	GeneratedAt   time.Time `json:"timestamp"`
	Method        string    `json:"optimization_method"`
}

type pairKey struct {
	trigger string
	next    string
}

// Config tunes the analyzer
type Config struct {
	SequenceWindow  time.Duration
	PairThreshold   int
	PatternCapacity int
}

func (c *Config) applyDefaults() {
	if c.SequenceWindow <= 0 {
		c.SequenceWindow = DefaultSequenceWindow
	}
	if c.PairThreshold <= 0 {
		c.PairThreshold = DefaultPairThreshold
	}
	if c.PatternCapacity <= 0 {
		c.PatternCapacity = DefaultPatternCapacity
	}
}

// Analyzer mines per-client request sequences for trigger -> prefetch
// patterns. Pair counts accumulate across cycles so rule strength only
// grows; the pair map is LRU-bounded so stale pairs eventually fall out
// instead of growing without bound.
type Analyzer struct {
	cfg    Config
	counts *lru.Cache[pairKey, int]
	logger *zap.Logger
}

// NewAnalyzer creates a prefetch analyzer
func NewAnalyzer(cfg Config, logger *zap.Logger) *Analyzer {
	cfg.applyDefaults()
	counts, _ := lru.New[pairKey, int](cfg.PatternCapacity)
	return &Analyzer{cfg: cfg, counts: counts, logger: logger}
}

// Analyze folds a batch into the pair counts and emits a rule for every
// trigger with at least two qualifying next-paths
func (a *Analyzer) Analyze(batch []logstore.LogRecord) []Rule {
	a.updateSequences(batch)
	return a.buildRules(time.Now().UTC())
}

// PatternCount returns the number of distinct observed pairs
func (a *Analyzer) PatternCount() int {
	return a.counts.Len()
}

type timedRecord struct {
	path string
	at   time.Time
}

func (a *Analyzer) updateSequences(batch []logstore.LogRecord) {
	byClient := make(map[string][]timedRecord)
	for _, rec := range batch {
		if rec.RequestPath == "" {
			continue
		}
		at, err := rec.Time()
		if err != nil {
			// unparsable timestamps are skipped, not fatal
			continue
		}
		client := rec.ClientIP
		if client == "" {
			client = "unknown"
		}
		byClient[client] = append(byClient[client], timedRecord{path: rec.RequestPath, at: at})
	}

	for _, seq := range byClient {
		sort.Slice(seq, func(i, j int) bool { return seq[i].at.Before(seq[j].at) })

		for i := 0; i < len(seq)-1; i++ {
			cur, next := seq[i], seq[i+1]
			if next.at.Sub(cur.at) > a.cfg.SequenceWindow {
				continue
			}
			key := pairKey{trigger: cur.path, next: next.path}
			count, _ := a.counts.Get(key)
			a.counts.Add(key, count+1)
		}
	}
}

func (a *Analyzer) buildRules(now time.Time) []Rule {
	// trigger -> qualifying next-paths with counts
	patterns := make(map[string]map[string]int)
	for _, key := range a.counts.Keys() {
		count, ok := a.counts.Peek(key)
		if !ok || count < a.cfg.PairThreshold {
			continue
		}
		if patterns[key.trigger] == nil {
			patterns[key.trigger] = make(map[string]int)
		}
		patterns[key.trigger][key.next] = count
	}

	triggers := make([]string, 0, len(patterns))
	for trigger, related := range patterns {
		if len(related) >= minRelatedFiles {
			triggers = append(triggers, trigger)
		}
	}
	sort.Strings(triggers)

	var rules []Rule
	for _, trigger := range triggers {
		related := patterns[trigger]
		rules = append(rules, Rule{
			TriggerFile:   trigger,
			PrefetchFiles: topRelated(related, maxPrefetchSet),
			Confidence:    confidence(related),
			Reason:        fmt.Sprintf("Pattern detected: %s is frequently followed by %d assets", trigger, len(related)),
			GeneratedAt:   now,
			Method:        MethodRuleBased,
		})
	}
	return rules
}

// topRelated orders next-paths by descending count, path ascending on
// ties, capped at limit
func topRelated(related map[string]int, limit int) []string {
	paths := make([]string, 0, len(related))
	for path := range related {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		if related[paths[i]] != related[paths[j]] {
			return related[paths[i]] > related[paths[j]]
		}
		return paths[i] < paths[j]
	})

	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths
}

// confidence bands rule strength by total qualifying occurrences
func confidence(related map[string]int) float64 {
	total := 0
	for _, count := range related {
		total += count
	}

	switch {
	case total >= 10:
		return 0.9
	case total >= 5:
		return 0.7
	default:
		return 0.5
	}
}
