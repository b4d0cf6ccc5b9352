package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check response
type HealthCheck struct {
	Status         HealthStatus     `json:"status"`
	Version        string           `json:"version"`
	Uptime         int64            `json:"uptime"`
	UptimeHuman    string           `json:"uptime_human"`
	QueueSize      int              `json:"queue_size"`
	CacheSizeBytes int64            `json:"cache_size_bytes"`
	MemoryUsageMB  uint64           `json:"memory_usage_mb"`
	DatabaseStatus string           `json:"database_status"`
	Checks         map[string]Check `json:"checks"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Check represents an individual health check
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker performs health checks
type HealthChecker struct {
	version   string
	startTime time.Time
	db        *sql.DB
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string, db *sql.DB) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		db:        db,
	}
}

// Check performs all health checks and returns the result
func (h *HealthChecker) Check(queueSize int, cacheSize int64) *HealthCheck {
	checks := make(map[string]Check)
	overallStatus := HealthStatusHealthy

	dbStatus := "connected"
	if err := h.checkDatabase(); err != nil {
		dbStatus = "disconnected"
		checks["database"] = Check{Status: "fail", Message: err.Error()}
		overallStatus = HealthStatusUnhealthy
	} else {
		checks["database"] = Check{Status: "pass"}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := memStats.Alloc / 1024 / 1024

	if memoryMB > 1024 {
		checks["memory"] = Check{Status: "warn", Message: fmt.Sprintf("high memory usage: %d MB", memoryMB)}
		if overallStatus == HealthStatusHealthy {
			overallStatus = HealthStatusDegraded
		}
	} else {
		checks["memory"] = Check{Status: "pass"}
	}

	uptime := time.Since(h.startTime)

	return &HealthCheck{
		Status:         overallStatus,
		Version:        h.version,
		Uptime:         int64(uptime.Seconds()),
		UptimeHuman:    formatUptime(uptime),
		QueueSize:      queueSize,
		CacheSizeBytes: cacheSize,
		MemoryUsageMB:  memoryMB,
		DatabaseStatus: dbStatus,
		Checks:         checks,
		Timestamp:      time.Now(),
	}
}

// checkDatabase verifies database connectivity
func (h *HealthChecker) checkDatabase() error {
	if h.db == nil {
		return fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return h.db.PingContext(ctx)
}

// formatUptime formats a duration in human-readable form
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
