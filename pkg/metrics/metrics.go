package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Metrics holds request and sync counters for the process.
// Scalar counters are atomics; the keyed maps are guarded by mu.
type Metrics struct {
	TotalRequests  int64
	ActiveRequests int64
	TotalErrors    int64
	TotalLatencyMs int64
	MaxLatencyMs   int64

	SyncRuns        int64
	SyncAborted     int64
	SyncConflicts   int64
	GrantsCreated   int64
	GrantsUpdated   int64
	GrantsDeleted   int64
	SyncErrors      int64
	SyncDurationMs  int64
	LastSyncAt      int64
	startTime       time.Time
	endpointCounts  map[string]int64
	endpointLatency map[string]int64
	statusCodes     map[int]int64
	mu              sync.Mutex
}

// SyncSample is the outcome of one reconciliation run.
type SyncSample struct {
	Created  int
	Updated  int
	Deleted  int
	Errors   int
	Aborted  bool
	Duration time.Duration
}

var (
	globalMetrics *Metrics
	once          sync.Once
)

// GetMetrics returns the process-wide metrics instance.
func GetMetrics() *Metrics {
	once.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}

// New returns an empty Metrics. Tests use it to avoid the shared instance.
func New() *Metrics {
	return &Metrics{
		startTime:       time.Now(),
		endpointCounts:  make(map[string]int64),
		endpointLatency: make(map[string]int64),
		statusCodes:     make(map[int]int64),
	}
}

// Middleware tracks request count, latency, in-flight requests and error rates.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.ActiveRequests, 1)
			start := time.Now()

			err := next(c)

			latencyMs := time.Since(start).Milliseconds()
			atomic.AddInt64(&m.ActiveRequests, -1)
			atomic.AddInt64(&m.TotalRequests, 1)
			atomic.AddInt64(&m.TotalLatencyMs, latencyMs)
			storeMax(&m.MaxLatencyMs, latencyMs)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			endpoint := fmt.Sprintf("%s %s", c.Request().Method, path)

			m.mu.Lock()
			m.endpointCounts[endpoint]++
			m.endpointLatency[endpoint] += latencyMs
			m.statusCodes[status]++
			m.mu.Unlock()
			if status >= http.StatusBadRequest {
				atomic.AddInt64(&m.TotalErrors, 1)
			}

			return err
		}
	}
}

// RecordSync adds one reconciliation run to the sync counters.
func (m *Metrics) RecordSync(s SyncSample) {
	atomic.AddInt64(&m.SyncRuns, 1)
	atomic.AddInt64(&m.GrantsCreated, int64(s.Created))
	atomic.AddInt64(&m.GrantsUpdated, int64(s.Updated))
	atomic.AddInt64(&m.GrantsDeleted, int64(s.Deleted))
	atomic.AddInt64(&m.SyncErrors, int64(s.Errors))
	atomic.AddInt64(&m.SyncDurationMs, s.Duration.Milliseconds())
	if s.Aborted {
		atomic.AddInt64(&m.SyncAborted, 1)
	}
	atomic.StoreInt64(&m.LastSyncAt, time.Now().Unix())
}

// RecordSyncConflict counts a sync rejected because another run held the project.
func (m *Metrics) RecordSyncConflict() {
	atomic.AddInt64(&m.SyncConflicts, 1)
}

func storeMax(addr *int64, v int64) {
	for {
		current := atomic.LoadInt64(addr)
		if v <= current {
			return
		}
		if atomic.CompareAndSwapInt64(addr, current, v) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests  int64            `json:"total_requests"`
	ActiveRequests int64            `json:"active_requests"`
	TotalErrors    int64            `json:"total_errors"`
	ErrorRate      float64          `json:"error_rate_pct"`
	AvgLatencyMs   float64          `json:"avg_latency_ms"`
	MaxLatencyMs   int64            `json:"max_latency_ms"`
	UptimeSeconds  float64          `json:"uptime_seconds"`
	EndpointCounts map[string]int64 `json:"endpoint_counts"`
	EndpointAvgMs  map[string]int64 `json:"endpoint_avg_latency_ms"`
	StatusCodes    map[int]int64    `json:"status_codes"`
	Sync           SyncSnapshot     `json:"sync"`
}

// SyncSnapshot is the sync part of Snapshot.
type SyncSnapshot struct {
	Runs          int64   `json:"runs"`
	Aborted       int64   `json:"aborted"`
	Conflicts     int64   `json:"conflicts"`
	Created       int64   `json:"created"`
	Updated       int64   `json:"updated"`
	Deleted       int64   `json:"deleted"`
	Errors        int64   `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	LastRunUnix   int64   `json:"last_run_unix,omitempty"`
}

func (m *Metrics) Snapshot() Snapshot {
	total := atomic.LoadInt64(&m.TotalRequests)
	errs := atomic.LoadInt64(&m.TotalErrors)
	snap := Snapshot{
		TotalRequests:  total,
		ActiveRequests: atomic.LoadInt64(&m.ActiveRequests),
		TotalErrors:    errs,
		MaxLatencyMs:   atomic.LoadInt64(&m.MaxLatencyMs),
		UptimeSeconds:  time.Since(m.startTime).Seconds(),
	}
	if total > 0 {
		snap.AvgLatencyMs = float64(atomic.LoadInt64(&m.TotalLatencyMs)) / float64(total)
		snap.ErrorRate = float64(errs) / float64(total) * 100
	}

	m.mu.Lock()
	snap.EndpointCounts = make(map[string]int64, len(m.endpointCounts))
	snap.EndpointAvgMs = make(map[string]int64, len(m.endpointCounts))
	for k, v := range m.endpointCounts {
		snap.EndpointCounts[k] = v
		if v > 0 {
			snap.EndpointAvgMs[k] = m.endpointLatency[k] / v
		}
	}
	snap.StatusCodes = make(map[int]int64, len(m.statusCodes))
	for k, v := range m.statusCodes {
		snap.StatusCodes[k] = v
	}
	m.mu.Unlock()

	runs := atomic.LoadInt64(&m.SyncRuns)
	snap.Sync = SyncSnapshot{
		Runs:        runs,
		Aborted:     atomic.LoadInt64(&m.SyncAborted),
		Conflicts:   atomic.LoadInt64(&m.SyncConflicts),
		Created:     atomic.LoadInt64(&m.GrantsCreated),
		Updated:     atomic.LoadInt64(&m.GrantsUpdated),
		Deleted:     atomic.LoadInt64(&m.GrantsDeleted),
		Errors:      atomic.LoadInt64(&m.SyncErrors),
		LastRunUnix: atomic.LoadInt64(&m.LastSyncAt),
	}
	if runs > 0 {
		snap.Sync.AvgDurationMs = float64(atomic.LoadInt64(&m.SyncDurationMs)) / float64(runs)
	}
	return snap
}

// RegisterRoutes adds GET /metrics/requests.
func (m *Metrics) RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics/requests", func(c echo.Context) error {
		return c.JSON(http.StatusOK, m.Snapshot())
	})
}
