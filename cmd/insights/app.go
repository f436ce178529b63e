package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseplan/pulse-insights/internal/bus"
	"github.com/pulseplan/pulse-insights/internal/cache"
	"github.com/pulseplan/pulse-insights/internal/classify"
	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/cost"
	"github.com/pulseplan/pulse-insights/internal/exact"
	"github.com/pulseplan/pulse-insights/internal/metrics"
	"github.com/pulseplan/pulse-insights/internal/model"
	"github.com/pulseplan/pulse-insights/internal/opstore"
	"github.com/pulseplan/pulse-insights/internal/orchestrator"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/semantic"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
	"github.com/pulseplan/pulse-insights/internal/vector"
)

// app holds the wired engine and everything that needs closing.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	engine   *orchestrator.Engine
	metrics  *metrics.Metrics
	governor *cost.Governor

	cancel  context.CancelFunc
	closers []func() error
}

// buildApp wires the full engine from configuration and global flags.
func buildApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := cfg.Log.Level
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	a := &app{cfg: cfg, log: log, cancel: cancel}

	// Metrics first: the instrumented bus needs them.
	a.metrics = metrics.New(cfg.Engine.EMASmoothing)

	innerBus, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	a.closers = append(a.closers, innerBus.Close)

	eventLogger, err := bus.NewEventLogger(cfg.Bus.EventLogPath, cfg.Bus.EventLogEnabled)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event logger: %w", err)
	}
	a.closers = append(a.closers, eventLogger.Close)

	var eventBus bus.Bus
	if cfg.Bus.EventLogEnabled {
		eventBus = bus.NewInstrumentedBus(bus.NewLoggedBus(innerBus, eventLogger, log), a.metrics)
		log.Debug("Event logging enabled", "path", cfg.Bus.EventLogPath)
	} else {
		eventBus = bus.NewInstrumentedBus(innerBus, a.metrics)
	}

	// Operational store. The CLI runs against the bundled demo dataset;
	// embedding deployments adapt the host application's store instead.
	store := opstore.NewMemoryStore()
	records := demoRecords(time.Now())
	store.Seed(records)
	log.Debug("Seeded demo dataset", "records", len(records))

	ledger, err := a.buildLedger(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.governor = cost.NewGovernor(ledger, cfg.Cost, log)

	modelSvc := model.NewOpenAI(cfg.Model, log)

	var native vector.Store
	if qs, err := vector.NewQdrantStore(cfg.Qdrant); err != nil {
		log.Warn("Qdrant unavailable, semantic search uses the manual fallback", "error", err)
	} else {
		native = qs
		a.closers = append(a.closers, qs.Close)
	}

	// Fallback scans an empty source until the host app wires documents in.
	fallback := vector.NewManualStore(vector.NewMemorySource(nil), log)

	answerCache, err := cache.New(cfg.Cache, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create answer cache: %w", err)
	}

	a.engine = orchestrator.New(orchestrator.Deps{
		Classifier:  classify.New(),
		Exact:       exact.NewAdapter(store, log),
		Semantic:    semantic.NewAdapter(modelSvc, a.governor, native, fallback, log),
		Synthesizer: synthesis.NewSynthesizer(modelSvc, a.governor, log),
		Cache:       answerCache,
		Bus:         eventBus,
		Metrics:     a.metrics,
	}, cfg.Engine, cfg.Breaker, log)

	return a, nil
}

func (a *app) buildLedger(ctx context.Context) (cost.Ledger, error) {
	switch a.cfg.Cost.LedgerType {
	case "", "memory":
		ledger := cost.NewMemoryLedger()
		interval := time.Duration(a.cfg.Cost.LedgerSweepIntervalMins) * time.Minute
		if interval > 0 {
			ledger.StartSweeper(ctx, interval)
		}
		return ledger, nil

	case "redis":
		ledger, err := cost.NewRedisLedger(a.cfg.Cost.LedgerRedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect cost ledger: %w", err)
		}
		a.closers = append(a.closers, ledger.Close)
		return ledger, nil

	default:
		return nil, fmt.Errorf("unknown ledger type: %s", a.cfg.Cost.LedgerType)
	}
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	a.cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Close failed", "error", err)
		}
	}
}
