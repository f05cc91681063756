// Package http provides the REST handlers of the IDE backend.
//
// Endpoints:
//   - Health: /health
//   - Files: /api/list, /api/read, /api/write, /api/tree, /api/search
//   - Sessions: /api/sessions, /api/sessions/:id
//   - Everything else: static frontend assets
//
// File errors use the same bodies throughout: 400 {"error":"Invalid path"}
// or {"error":"path required"}, and 404 {"error":"Not found"}.
//
// Example Usage:
//
//	handlers := http.NewHandlers(workspace, manager, metrics, logger)
//	router.GET("/api/list", handlers.ListFiles)
//	router.NoRoute(http.Static(publicDir))
package http
