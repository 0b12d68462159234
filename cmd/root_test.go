// File: cmd/root_test.go
package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/browser/pool"
	"github.com/xkilldash9x/voyant/internal/browser/session"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/health"
	"github.com/xkilldash9x/voyant/internal/mocks"
)

func TestInitializeConfigUsesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, initializeConfig())
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.ServerCfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionCfg.TTL)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("VOYANT_SERVER_PORT", "9999")
	t.Setenv("VOYANT_INTELLIGENCE_MODE", "legacy")

	require.NoError(t, initializeConfig())
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.ServerCfg.Port)
	assert.Equal(t, "legacy", cfg.IntelligenceCfg.Mode)
}

func TestRegisterChecksReflectPoolState(t *testing.T) {
	logger := zap.NewNop()
	factory := func(ctx context.Context) (schemas.Driver, error) {
		return mocks.NewMockDriver(), nil
	}

	p := pool.New(context.Background(), config.PoolConfig{
		MinSize:        1,
		MaxSize:        1,
		AcquireTimeout: time.Second,
	}, factory, logger)
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	sessions := session.NewManager(factory, time.Minute, time.Minute, logger)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	monitor := health.NewMonitor(config.HealthConfig{
		CheckInterval:   time.Minute,
		MetricsInterval: time.Minute,
		AlertHistory:    5,
	}, health.NewMetrics(), logger)
	t.Cleanup(monitor.Stop)

	registerChecks(monitor, p, sessions)

	// Saturate the single-browser pool; the check should report degraded.
	loan, err := p.Acquire(context.Background())
	require.NoError(t, err)
	monitor.RunChecks(context.Background())
	report := monitor.Report()

	var poolStatus schemas.HealthStatus
	for _, c := range report.Components {
		if c.Name == "browser_pool" {
			poolStatus = c.Status
		}
	}
	assert.Equal(t, schemas.StatusDegraded, poolStatus)

	loan.Release()
	monitor.RunChecks(context.Background())
	for _, c := range monitor.Report().Components {
		if c.Name == "browser_pool" {
			assert.Equal(t, schemas.StatusHealthy, c.Status)
		}
	}
}
