package schemas

import "time"

// HealthStatus orders component states from best to worst.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
	StatusDown     HealthStatus = "down"
)

// Severity returns a rank for worst-of aggregation; higher is worse.
func (s HealthStatus) Severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusDegraded:
		return 2
	case StatusCritical:
		return 3
	case StatusDown:
		return 4
	}
	return 4
}

// ComponentHealth is the outcome of one registered check.
type ComponentHealth struct {
	Name           string       `json:"name"`
	Status         HealthStatus `json:"status"`
	Message        string       `json:"message,omitempty"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// PerformanceSummary carries the counters refreshed by the metrics loop.
type PerformanceSummary struct {
	RequestsTotal       int64   `json:"requests_total"`
	BrowserActionsTotal int64   `json:"browser_actions_total"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	PoolInUse           int     `json:"pool_in_use"`
	PoolSize            int     `json:"pool_size"`
	ActiveSessions      int     `json:"active_sessions"`
	GoroutineCount      int     `json:"goroutine_count"`
	HeapAllocBytes      uint64  `json:"heap_alloc_bytes"`
}

// Alert records one threshold crossing observed by the monitor.
type Alert struct {
	Timestamp time.Time    `json:"timestamp"`
	Component string       `json:"component"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message"`
}

// HealthReport is the monitor's synthesized snapshot.
type HealthReport struct {
	Status          HealthStatus       `json:"status"`
	GeneratedAt     time.Time          `json:"generated_at"`
	UptimeSeconds   int64              `json:"uptime_seconds"`
	Components      []ComponentHealth  `json:"components"`
	HealthyCount    int                `json:"healthy_count"`
	UnhealthyCount  int                `json:"unhealthy_count"`
	Performance     PerformanceSummary `json:"performance"`
	RecentAlerts    []Alert            `json:"recent_alerts,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
}
