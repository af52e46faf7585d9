package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequestsAndErrors(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusConflict) })

	for _, path := range []string{"/ok", "/ok", "/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(2), snap.EndpointCounts["GET /ok"])
	assert.Equal(t, int64(1), snap.StatusCodes[http.StatusConflict])
	assert.InDelta(t, 33.3, snap.ErrorRate, 0.1)
}

func TestRecordSync(t *testing.T) {
	m := New()
	m.RecordSync(SyncSample{Created: 2, Updated: 1, Deleted: 3, Errors: 1, Duration: 40 * time.Millisecond})
	m.RecordSync(SyncSample{Aborted: true, Duration: 20 * time.Millisecond})
	m.RecordSyncConflict()

	snap := m.Snapshot().Sync
	assert.Equal(t, int64(2), snap.Runs)
	assert.Equal(t, int64(1), snap.Aborted)
	assert.Equal(t, int64(1), snap.Conflicts)
	assert.Equal(t, int64(2), snap.Created)
	assert.Equal(t, int64(3), snap.Deleted)
	assert.InDelta(t, 30, snap.AvgDurationMs, 0.001)
	assert.NotZero(t, snap.LastRunUnix)
}

func TestRegisterRoutes(t *testing.T) {
	m := New()
	e := echo.New()
	m.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/requests", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sync"`)
}
