// File: internal/health/monitor.go
package health

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

// CheckFunc probes one component and reports its state.
type CheckFunc func(ctx context.Context) (schemas.HealthStatus, string)

// PerformanceSource supplies the live counters the report embeds. Wired by
// the composition layer so the monitor stays decoupled from pool, cache and
// session types.
type PerformanceSource func() schemas.PerformanceSummary

const checkTimeout = 10 * time.Second

// Monitor runs registered health checks and a metrics refresh loop, keeps a
// bounded alert history and synthesizes health reports.
type Monitor struct {
	cfg     config.HealthConfig
	metrics *Metrics
	logger  *zap.Logger

	mu         sync.RWMutex
	checks     map[string]CheckFunc
	components map[string]schemas.ComponentHealth
	alerts     []schemas.Alert
	perfSource PerformanceSource

	startedAt time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewMonitor(cfg config.HealthConfig, metrics *Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.Named("health"),
		checks:     make(map[string]CheckFunc),
		components: make(map[string]schemas.ComponentHealth),
		startedAt:  time.Now(),
		stopCh:     make(chan struct{}),
	}
}

// RegisterCheck adds or replaces a component check.
func (m *Monitor) RegisterCheck(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
}

// SetPerformanceSource wires the live counter supplier.
func (m *Monitor) SetPerformanceSource(fn PerformanceSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perfSource = fn
}

// Start launches the check and metrics loops.
func (m *Monitor) Start() {
	m.wg.Add(2)
	go m.checkLoop()
	go m.metricsLoop()
}

// Stop halts both loops and waits for them.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) checkLoop() {
	defer m.wg.Done()
	interval := m.cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(context.Background())
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.RunChecks(context.Background())
		}
	}
}

func (m *Monitor) metricsLoop() {
	defer m.wg.Done()
	interval := m.cfg.MetricsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.refreshMetrics()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.refreshMetrics()
		}
	}
}

// RunChecks executes every registered check once and records alerts for
// state degradations.
func (m *Monitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mu.RUnlock()

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		status, message := fn(checkCtx)
		cancel()

		component := schemas.ComponentHealth{
			Name:           name,
			Status:         status,
			Message:        message,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			CheckedAt:      time.Now(),
		}
		m.recordComponent(component)
	}
}

func (m *Monitor) recordComponent(c schemas.ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, seen := m.components[c.Name]
	m.components[c.Name] = c

	// Alert on entering a degraded-or-worse state, not on every tick in it.
	if c.Status.Severity() >= schemas.StatusDegraded.Severity() &&
		(!seen || prev.Status != c.Status) {
		m.appendAlertLocked(schemas.Alert{
			Timestamp: c.CheckedAt,
			Component: c.Name,
			Status:    c.Status,
			Message:   c.Message,
		})
		m.logger.Warn("Component health degraded",
			zap.String("component", c.Name),
			zap.String("status", string(c.Status)),
			zap.String("message", c.Message))
	}
}

func (m *Monitor) appendAlertLocked(a schemas.Alert) {
	limit := m.cfg.AlertHistory
	if limit <= 0 {
		limit = 50
	}
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > limit {
		m.alerts = m.alerts[len(m.alerts)-limit:]
	}
}

func (m *Monitor) refreshMetrics() {
	if m.metrics == nil {
		return
	}

	m.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.metrics.heapAlloc.Set(float64(mem.HeapAlloc))

	m.mu.RLock()
	src := m.perfSource
	m.mu.RUnlock()
	if src == nil {
		return
	}
	perf := src()
	m.metrics.poolSize.Set(float64(perf.PoolSize))
	m.metrics.poolInUse.Set(float64(perf.PoolInUse))
	m.metrics.activeSessions.Set(float64(perf.ActiveSessions))
	m.metrics.cacheHitRate.Set(perf.CacheHitRate)
}

// Report synthesizes the current health snapshot.
func (m *Monitor) Report() *schemas.HealthReport {
	m.mu.RLock()
	components := make([]schemas.ComponentHealth, 0, len(m.components))
	for _, c := range m.components {
		components = append(components, c)
	}
	alerts := make([]schemas.Alert, len(m.alerts))
	copy(alerts, m.alerts)
	src := m.perfSource
	m.mu.RUnlock()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	overall := schemas.StatusHealthy
	healthy, unhealthy := 0, 0
	for _, c := range components {
		if c.Status == schemas.StatusHealthy {
			healthy++
		} else {
			unhealthy++
		}
		if c.Status.Severity() > overall.Severity() {
			overall = c.Status
		}
	}

	perf := schemas.PerformanceSummary{}
	if src != nil {
		perf = src()
	}
	perf.GoroutineCount = runtime.NumGoroutine()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	perf.HeapAllocBytes = mem.HeapAlloc

	return &schemas.HealthReport{
		Status:          overall,
		GeneratedAt:     time.Now(),
		UptimeSeconds:   int64(time.Since(m.startedAt).Seconds()),
		Components:      components,
		HealthyCount:    healthy,
		UnhealthyCount:  unhealthy,
		Performance:     perf,
		RecentAlerts:    alerts,
		Recommendations: recommendations(components, perf),
	}
}

// recommendations derives operator guidance from the current snapshot.
func recommendations(components []schemas.ComponentHealth, perf schemas.PerformanceSummary) []string {
	var recs []string
	for _, c := range components {
		switch c.Status {
		case schemas.StatusDown, schemas.StatusCritical:
			recs = append(recs, fmt.Sprintf("component %s is %s: %s", c.Name, c.Status, c.Message))
		case schemas.StatusDegraded:
			recs = append(recs, fmt.Sprintf("component %s is degraded; investigate before it worsens", c.Name))
		}
	}
	if perf.PoolSize > 0 && perf.PoolInUse >= perf.PoolSize {
		recs = append(recs, "browser pool is saturated; consider raising pool.max_size")
	}
	if perf.RequestsTotal > 100 && perf.CacheHitRate < 0.2 {
		recs = append(recs, "perception cache hit rate is low; consider raising perception.cache_ttl")
	}
	if perf.GoroutineCount > 5000 {
		recs = append(recs, "goroutine count is unusually high; check for leaked sessions")
	}
	return recs
}
