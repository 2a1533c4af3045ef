// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/FairForge/edgeplane/internal/collector"
	"github.com/FairForge/edgeplane/internal/configstore"
	"github.com/FairForge/edgeplane/internal/explain"
	"github.com/FairForge/edgeplane/internal/metrics"
	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"go.uber.org/zap"
)

// Defaults for the analysis loop
const (
	DefaultInterval = 300 * time.Second
	DefaultCooldown = 10 * time.Second
)

// Scheduler drives the analysis pipeline on a fixed cadence. A single
// goroutine runs the loop, so the analyzers need no internal locking;
// the configuration store handles its own reader concurrency.
type Scheduler struct {
	source    collector.BatchSource
	optimizer *optimizer.Optimizer
	analyzer  *prefetch.Analyzer
	explainer explain.Explainer
	history   *explain.History
	store     *configstore.Store

	interval time.Duration
	cooldown time.Duration
	logger   *zap.Logger
}

// New creates a scheduler owning references to all pipeline components
func New(
	source collector.BatchSource,
	opt *optimizer.Optimizer,
	analyzer *prefetch.Analyzer,
	explainer explain.Explainer,
	history *explain.History,
	store *configstore.Store,
	interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		source:    source,
		optimizer: opt,
		analyzer:  analyzer,
		explainer: explainer,
		history:   history,
		store:     store,
		interval:  interval,
		cooldown:  DefaultCooldown,
		logger:    logger,
	}
}

// Run executes analysis cycles until ctx is cancelled. A failed cycle
// is logged and followed by a short cooldown instead of the full
// interval; it never terminates the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("analysis loop started",
		zap.Duration("interval", s.interval))

	for {
		wait := s.interval
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("analysis cycle failed", zap.Error(err))
			wait = s.cooldown
		}

		select {
		case <-ctx.Done():
			s.logger.Info("analysis loop stopped")
			return
		case <-time.After(wait):
		}
	}
}

// RunCycle executes one fetch/analyze/apply cycle. Panics inside a
// cycle are recovered and reported as a cycle error so previously
// committed state stays intact.
func (s *Scheduler) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: cycle panic: %v", r)
		}
	}()

	start := time.Now()
	batch := s.source.FetchBatch(ctx)
	if len(batch) == 0 {
		metrics.RecordCycle("empty", time.Since(start), 0)
		return nil
	}

	s.logger.Info("analyzing log batch", zap.Int("records", len(batch)))

	ttlRecs := s.optimizer.Analyze(ctx, batch)
	if len(ttlRecs) > 0 {
		if err := s.store.ApplyTTL(ttlRecs); err != nil {
			metrics.RecordCycle("error", time.Since(start), len(batch))
			return fmt.Errorf("scheduler: applying TTL recommendations: %w", err)
		}
		s.logger.Info("applied TTL recommendations", zap.Int("count", len(ttlRecs)))
	}

	rules := s.analyzer.Analyze(batch)
	if len(rules) > 0 {
		if err := s.store.ApplyPrefetch(rules); err != nil {
			metrics.RecordCycle("error", time.Since(start), len(batch))
			return fmt.Errorf("scheduler: applying prefetch rules: %w", err)
		}
		s.logger.Info("applied prefetch rules", zap.Int("count", len(rules)))
	}
	metrics.RecordRecommendations(len(ttlRecs), len(rules))

	for _, rec := range batch {
		exp := s.explainer.Explain(ctx, rec)
		s.history.Add(exp)
		metrics.RecordExplanation(exp.Method)
	}

	metrics.RecordCycle("ok", time.Since(start), len(batch))
	return nil
}
