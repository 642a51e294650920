package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/agent"
	"github.com/v0xg/cuagent/internal/ai"
	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/config"
	"github.com/v0xg/cuagent/internal/executor"
	"github.com/v0xg/cuagent/internal/gifgen"
	"github.com/v0xg/cuagent/internal/jobs"
	"github.com/v0xg/cuagent/internal/metrics"
	"github.com/v0xg/cuagent/internal/observability"
)

// app holds everything a command needs
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	pool     browser.Pool
	jobs     *jobs.Registry
	recorder *gifgen.Recorder // nil unless record.output is set
}

// loadConfig merges defaults, the config file, CUAGENT_ environment variables and explicitly set flags
func loadConfig() (*config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	for key, flag := range boundFlags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag for %s: %w", key, err)
		}
	}
	return config.FromViper(v)
}

// newApp wires config, logging, metrics, the browser pool, the provider and the job registry.
// Recording is only honored when record is true.
func newApp(ctx context.Context, record bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("cuagent", reg, logger)

	var (
		rec      *gifgen.Recorder
		recorder agent.Recorder
	)
	if record && cfg.Record.Output != "" {
		rec = gifgen.NewRecorder(cfg.Record.Markers, logger)
		recorder = rec
	}

	pool, err := newPool(cfg, logger)
	if err != nil {
		return nil, err
	}

	provider, err := ai.NewProvider(ctx, cfg.AI.Provider, ai.Options{
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("AI provider init failed: %w", err)
	}

	loop := agent.New(pool, provider, agent.Options{
		StartURL:        cfg.Browser.StartURL,
		MaxCycles:       cfg.Agent.MaxCycles,
		DecisionTimeout: cfg.AI.RequestTimeout,
		Settle:          cfg.Browser.Settle,
		Executor:        executor.Options{WaitDuration: cfg.Agent.WaitDuration},
		Recorder:        recorder,
		Metrics:         m,
	}, logger)

	logger.Info("Agent ready",
		zap.String("provider", provider.Name()),
		zap.String("backend", cfg.Browser.Backend),
		zap.String("mode", cfg.Browser.Mode),
		zap.Int("max_cycles", cfg.Agent.MaxCycles))

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		pool:     pool,
		jobs:     jobs.NewRegistry(loop, m, logger),
		recorder: rec,
	}, nil
}

func newPool(cfg *config.Config, logger *zap.Logger) (browser.Pool, error) {
	backend := browser.Backend(cfg.Browser.Backend)
	opts := browser.Options{
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Headless:   cfg.Browser.Headless,
		ProfileDir: cfg.Browser.ProfileDir,
		Timeout:    cfg.Browser.Timeout,
	}

	if cfg.Browser.Mode == config.ModePerJob {
		factory := func() (browser.Surface, error) {
			return browser.NewSurface(backend, opts, logger)
		}
		return browser.NewLaunchPool(factory, cfg.Browser.MaxBrowsers, logger), nil
	}

	surface, err := browser.NewSurface(backend, opts, logger)
	if err != nil {
		return nil, err
	}
	return browser.NewSharedPool(surface, logger), nil
}

// close stops running jobs, the browser and flushes the logger
func (a *app) close(ctx context.Context) {
	if err := a.jobs.Shutdown(ctx); err != nil {
		a.logger.Warn("Jobs did not stop in time", zap.Error(err))
	}
	if err := a.pool.Close(); err != nil {
		a.logger.Warn("Failed to close browser", zap.Error(err))
	}
	_ = a.logger.Sync()
}
