// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/browser"
	"github.com/xkilldash9x/voyant/internal/browser/pool"
	"github.com/xkilldash9x/voyant/internal/browser/session"
	"github.com/xkilldash9x/voyant/internal/health"
	"github.com/xkilldash9x/voyant/internal/instruction"
	"github.com/xkilldash9x/voyant/internal/intelligence"
	"github.com/xkilldash9x/voyant/internal/observability"
	"github.com/xkilldash9x/voyant/internal/perception"
	"github.com/xkilldash9x/voyant/internal/semantic"
	"github.com/xkilldash9x/voyant/internal/server"
	"github.com/xkilldash9x/voyant/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the automation engine HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg := appCfg
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := func(ctx context.Context) (schemas.Driver, error) {
		return browser.New(ctx, cfg.BrowserCfg, logger)
	}

	// Fail fast when Chrome cannot start at all. A pool that silently never
	// fills is much harder to diagnose than an exit at boot.
	probe, err := factory(ctx)
	if err != nil {
		return schemas.WrapError(schemas.KindDriverUnavailable, "cmd.serve",
			fmt.Errorf("browser startup probe failed: %w", err))
	}
	if quitErr := probe.Quit(ctx); quitErr != nil {
		logger.Warn("Probe browser did not quit cleanly", zap.Error(quitErr))
	}

	browserPool := pool.New(ctx, cfg.PoolCfg, factory, logger)
	defer browserPool.Shutdown(context.Background())

	sessions := session.NewManager(factory, cfg.SessionCfg.TTL, cfg.SessionCfg.ReapInterval, logger)
	defer sessions.Shutdown(context.Background())

	analyzer := semantic.NewAnalyzer(logger)
	perceptionEngine := perception.NewEngine(cfg.PerceptionCfg, logger)
	instructions := instruction.NewPipeline(cfg.InstructionCfg, analyzer, logger)
	workflows := workflow.NewEngine(cfg.WorkflowCfg, logger)

	var memory intelligence.FeedbackMemory
	if cfg.IntelligenceCfg.DatabaseURL != "" {
		db, err := intelligence.OpenPool(ctx, cfg.IntelligenceCfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := intelligence.EnsureSchema(ctx, db); err != nil {
			return err
		}
		memory = intelligence.NewPGMemory(db, logger)
		logger.Info("Feedback memory backed by PostgreSQL")
	}
	classifier := intelligence.NewPatternClassifier(cfg.InstructionCfg.ConfidenceThreshold)
	svc := intelligence.NewService(cfg.IntelligenceCfg, classifier, memory, logger)

	metrics := health.NewMetrics()
	monitor := health.NewMonitor(cfg.HealthCfg, metrics, logger)
	registerChecks(monitor, browserPool, sessions)
	monitor.SetPerformanceSource(func() schemas.PerformanceSummary {
		return schemas.PerformanceSummary{
			RequestsTotal:       metrics.RequestsTotal(),
			BrowserActionsTotal: metrics.BrowserActionsTotal(),
			CacheHitRate:        perceptionEngine.CacheStats().HitRate,
			PoolSize:            browserPool.Size(),
			PoolInUse:           browserPool.InUse(),
			ActiveSessions:      sessions.Count(),
		}
	})
	monitor.Start()
	defer monitor.Stop()

	srv := server.New(server.Deps{
		Config:       cfg.ServerCfg,
		Logger:       logger,
		Pool:         browserPool,
		Sessions:     sessions,
		Perception:   perceptionEngine,
		Analyzer:     analyzer,
		Instructions: instructions,
		Workflows:    workflows,
		Intelligence: svc,
		Monitor:      monitor,
		Metrics:      metrics,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}

func registerChecks(monitor *health.Monitor, browserPool *pool.Pool, sessions *session.Manager) {
	monitor.RegisterCheck("browser_pool", func(ctx context.Context) (schemas.HealthStatus, string) {
		size := browserPool.Size()
		inUse := browserPool.InUse()
		switch {
		case size == 0:
			return schemas.StatusDown, "no browsers available"
		case inUse >= size:
			return schemas.StatusDegraded, fmt.Sprintf("all %d browsers in use", size)
		default:
			return schemas.StatusHealthy, fmt.Sprintf("%d/%d browsers in use", inUse, size)
		}
	})
	monitor.RegisterCheck("sessions", func(ctx context.Context) (schemas.HealthStatus, string) {
		return schemas.StatusHealthy, fmt.Sprintf("%d active sessions", sessions.Count())
	})
}
