package db

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// CheckResult is one entry of the readiness report.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthReport struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
	Pool   *PoolStats    `json:"pool,omitempty"`
}

// RunChecks probes every dependency concurrently and reports them sorted by
// name.
func RunChecks(ctx context.Context, checks map[string]Check) HealthReport {
	results := make([]CheckResult, 0, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			r := CheckResult{Name: name, Status: "healthy"}
			if err := check(ctx); err != nil {
				r.Status, r.Error = "unhealthy", err.Error()
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := HealthReport{Status: "healthy", Checks: results}
	for _, r := range results {
		if r.Status != "healthy" {
			report.Status = "unhealthy"
		}
	}
	return report
}

// HealthHandler returns the readiness endpoint. pool may be nil when sessions
// are kept in memory.
func HealthHandler(pool *pgxpool.Pool, checks map[string]Check) echo.HandlerFunc {
	all := make(map[string]Check, len(checks)+1)
	for k, v := range checks {
		all[k] = v
	}
	if pool != nil {
		all["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := RunChecks(ctx, all)
		if pool != nil {
			report.Pool = GetPoolStats(pool)
		}
		if report.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
