// cmd/edgeplane/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FairForge/edgeplane/internal/api"
	"github.com/FairForge/edgeplane/internal/collector"
	"github.com/FairForge/edgeplane/internal/config"
	"github.com/FairForge/edgeplane/internal/configstore"
	"github.com/FairForge/edgeplane/internal/explain"
	"github.com/FairForge/edgeplane/internal/genai"
	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"github.com/FairForge/edgeplane/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	// Create logger
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	// Load config: defaults, optional YAML file, env overrides
	cfg := config.Default()
	if path := os.Getenv("EDGEPLANE_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			logger.Fatal("failed to load config file", zap.String("path", path), zap.Error(err))
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if cfg.Server.LogLevel == "debug" {
		logger, _ = zap.NewDevelopment()
	}

	// Open the persistent config store
	store, err := configstore.Open(cfg.Store.DataDir, cfg.Store.HistoryRetention, logger)
	if err != nil {
		logger.Fatal("failed to open config store", zap.String("dir", cfg.Store.DataDir), zap.Error(err))
	}
	logger.Info("config store opened",
		zap.String("dir", cfg.Store.DataDir),
		zap.Int("ttl_rules", len(store.TTLConfig())),
		zap.Int("prefetch_rules", len(store.PrefetchConfig())))

	// Analysis pipeline
	logs := logstore.NewStore(cfg.Logs.Capacity, logger)

	// Model-backed paths need an API key; everything falls back to rules/templates
	var advisor optimizer.Advisor
	var explainer explain.Explainer = explain.NewTemplateExplainer()
	apiKey := config.GetEnvOrDefault("OPENAI_API_KEY", "")
	if cfg.Explain.Mode == config.ExplainModel && apiKey != "" {
		client := genai.NewClient(genai.Config{
			APIKey: apiKey,
			Model:  cfg.Explain.Model,
		}, logger)
		advisor = genai.NewTTLAdvisor(client)
		explainer = explain.NewModelExplainer(client, logger)
		logger.Info("model-backed analysis enabled", zap.String("model", cfg.Explain.Model))
	} else if cfg.Explain.Mode == config.ExplainModel {
		logger.Warn("explain mode is 'model' but OPENAI_API_KEY is not set, using templates")
	}

	opt := optimizer.NewOptimizer(optimizer.Config{
		MinSamples:     cfg.Analysis.MinSamples,
		StatsCapacity:  cfg.Analysis.StatsCapacity,
		SpikeMinRecent: cfg.Analysis.SpikeMinRecent,
	}, advisor, logger)

	analyzer := prefetch.NewAnalyzer(prefetch.Config{
		SequenceWindow:  cfg.SequenceWindow(),
		PairThreshold:   cfg.Analysis.PairThreshold,
		PatternCapacity: cfg.Analysis.PatternCapacity,
	}, logger)

	history := explain.NewHistory(cfg.Explain.Retention)

	// Choose the log source: pull from a remote monitoring endpoint,
	// or consume the built-in ingest store
	var source collector.BatchSource
	if cfg.Logs.MonitoringURL != "" {
		source = collector.NewHTTPCollector(cfg.Logs.MonitoringURL, cfg.Analysis.BatchSize, logger)
		logger.Info("collecting logs from remote monitoring", zap.String("url", cfg.Logs.MonitoringURL))
	} else {
		source = collector.NewStoreCollector(logs, cfg.Analysis.BatchSize)
		logger.Info("collecting logs from local ingest store")
	}

	sched := scheduler.New(source, opt, analyzer, explainer, history, store, cfg.Interval(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	server := api.NewServer(cfg, logger, logs, store, history, opt, analyzer)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down...")
		cancel()

		// let an in-flight analysis cycle finish committing its writes
		select {
		case <-schedDone:
		case <-time.After(10 * time.Second):
			logger.Warn("analysis loop did not stop within grace period")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		os.Exit(0)
	}()

	fmt.Printf("edgeplane control plane listening on :%d (analysis every %s)\n",
		cfg.Server.Port, cfg.Interval())

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
