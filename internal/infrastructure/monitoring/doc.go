/*
Package monitoring provides Prometheus metrics for the server.

Each Metrics owns a private registry holding HTTP, service, terminal,
WebSocket and watcher metrics plus the Go and process collectors. Metrics
implements the terminal package's Observer interface, so passing it to the
session manager is enough to track sessions.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	manager.WithObserver(metrics)

	timer := monitoring.NewTimer(metrics, "workspace", "write")
	err := ws.Write(path, content)
	timer.StopErr(err)

All metric names carry the "webide_" prefix.
*/
package monitoring
