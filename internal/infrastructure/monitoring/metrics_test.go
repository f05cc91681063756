package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsIsolated(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.SessionOpened()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SessionsActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsActive))
}

func TestSessionObserver(t *testing.T) {
	m := NewMetrics()

	m.SessionOpened()
	m.SessionOpened()
	m.BytesRelayed("output", 100)
	m.BytesRelayed("input", 5)
	m.SessionClosed("eof", 2*time.Second)
	m.SpawnFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("eof")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.TerminalBytes.WithLabelValues("output")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TerminalBytes.WithLabelValues("input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpawnFailures))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ActiveSessions)
	assert.Equal(t, int64(2), snap.TotalSessions)
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/api/list", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.NoRoute(func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/api/list", "/api/list", "/missing.js"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/list", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "static", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
}

func TestMiddlewareSkipsWebsocketUpgrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ws/term", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	req := httptest.NewRequest(http.MethodGet, "/ws/term", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(0), m.Snapshot().TotalRequests)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	NewTimer(m, "workspace", "write").StopErr(nil)
	NewTimer(m, "workspace", "write").StopErr(errors.New("disk full"))
	assert.NotPanics(t, func() { NewTimer(nil, "workspace", "read").Stop("success") })

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceCalls.WithLabelValues("workspace", "write", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceCalls.WithLabelValues("workspace", "write", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncWSConnections("term")
	m.RecordWSMessage("in", "binary")
	m.RecordWatchBatch(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `webide_ws_connections{endpoint="term"} 1`)
	assert.Contains(t, text, "webide_watch_events_total 3")
	assert.Contains(t, text, "webide_uptime_seconds")
	assert.Contains(t, text, "go_goroutines")
}
