// File: internal/health/monitor_test.go
package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		CheckInterval:   10 * time.Millisecond,
		MetricsInterval: 10 * time.Millisecond,
		AlertHistory:    5,
	}
}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m := NewMonitor(testHealthConfig(), NewMetrics(), zap.NewNop())
	t.Cleanup(m.Stop)
	return m
}

func staticCheck(status schemas.HealthStatus, message string) CheckFunc {
	return func(ctx context.Context) (schemas.HealthStatus, string) {
		return status, message
	}
}

func TestReportAggregatesWorstStatus(t *testing.T) {
	m := newTestMonitor(t)
	m.RegisterCheck("browser_pool", staticCheck(schemas.StatusHealthy, ""))
	m.RegisterCheck("sessions", staticCheck(schemas.StatusDegraded, "reaper lagging"))
	m.RegisterCheck("database", staticCheck(schemas.StatusHealthy, ""))
	m.RunChecks(context.Background())

	report := m.Report()
	assert.Equal(t, schemas.StatusDegraded, report.Status)
	assert.Equal(t, 2, report.HealthyCount)
	assert.Equal(t, 1, report.UnhealthyCount)
	require.Len(t, report.Components, 3)
	// Components come back sorted by name.
	assert.Equal(t, "browser_pool", report.Components[0].Name)
	assert.Equal(t, "database", report.Components[1].Name)
}

func TestReportDownOutranksEverything(t *testing.T) {
	m := newTestMonitor(t)
	m.RegisterCheck("a", staticCheck(schemas.StatusCritical, "x"))
	m.RegisterCheck("b", staticCheck(schemas.StatusDown, "driver unreachable"))
	m.RunChecks(context.Background())

	assert.Equal(t, schemas.StatusDown, m.Report().Status)
}

func TestAlertsOnDegradationOnly(t *testing.T) {
	m := newTestMonitor(t)
	current := schemas.StatusHealthy
	m.RegisterCheck("flappy", func(ctx context.Context) (schemas.HealthStatus, string) {
		return current, "state"
	})

	m.RunChecks(context.Background())
	assert.Empty(t, m.Report().RecentAlerts, "healthy states do not alert")

	current = schemas.StatusCritical
	m.RunChecks(context.Background())
	m.RunChecks(context.Background())
	alerts := m.Report().RecentAlerts
	require.Len(t, alerts, 1, "repeated ticks in the same bad state alert once")
	assert.Equal(t, "flappy", alerts[0].Component)
	assert.Equal(t, schemas.StatusCritical, alerts[0].Status)
}

func TestAlertHistoryBounded(t *testing.T) {
	m := newTestMonitor(t)
	status := schemas.StatusCritical
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("comp-%d", i)
		m.RegisterCheck(name, staticCheck(status, "bad"))
	}
	m.RunChecks(context.Background())

	assert.Len(t, m.Report().RecentAlerts, 5, "history capped at alert_history")
}

func TestPerformanceSourceFeedsReport(t *testing.T) {
	m := newTestMonitor(t)
	m.SetPerformanceSource(func() schemas.PerformanceSummary {
		return schemas.PerformanceSummary{
			RequestsTotal:  500,
			PoolSize:       4,
			PoolInUse:      4,
			ActiveSessions: 2,
			CacheHitRate:   0.1,
		}
	})

	report := m.Report()
	assert.Equal(t, int64(500), report.Performance.RequestsTotal)
	assert.Equal(t, 4, report.Performance.PoolSize)
	assert.Positive(t, report.Performance.GoroutineCount)

	joined := ""
	for _, r := range report.Recommendations {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "pool is saturated")
	assert.Contains(t, joined, "cache hit rate is low")
}

func TestMonitorLoopsRunAndStop(t *testing.T) {
	m := NewMonitor(testHealthConfig(), NewMetrics(), zap.NewNop())
	var ticks int
	done := make(chan struct{})
	m.RegisterCheck("counter", func(ctx context.Context) (schemas.HealthStatus, string) {
		ticks++
		if ticks == 3 {
			close(done)
		}
		return schemas.StatusHealthy, ""
	})

	m.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("check loop never ran three times")
	}
	m.Stop()
	m.Stop() // idempotent
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveRequest(http.MethodGet, "/api/v1/perception/analyze", 200, 120*time.Millisecond)
	metrics.ObserveBrowserAction("click", true)
	metrics.ObserveBrowserAction("click", false)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "voyant_http_requests_total")
	assert.Contains(t, body, `outcome="error"`)
	assert.Contains(t, body, "voyant_browser_actions_total")
}

func TestUptimeIncreases(t *testing.T) {
	m := newTestMonitor(t)
	m.startedAt = time.Now().Add(-90 * time.Second)
	assert.GreaterOrEqual(t, m.Report().UptimeSeconds, int64(90))
}
