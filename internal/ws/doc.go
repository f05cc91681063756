// Package ws provides the WebSocket endpoints of the IDE.
//
// /ws/term bridges one connection to one terminal session. Terminal output
// is sent as binary frames; keystrokes may arrive as binary or text frames
// and are written to the terminal unchanged. There is no handshake payload
// and no message framing beyond the websocket's own.
//
// /ws/events pushes workspace change batches as JSON text frames:
//
//	{"events":[{"op":"write","path":"src/main.go"}],"at":"2024-05-01T10:00:00Z"}
//
// Both endpoints check the Origin header against the configured allow-list
// and keep connections alive with pings.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, watcher, ws.Options{AllowedOrigins: origins})
//	router.GET("/ws/term", handler.HandleTerminal)
//	router.GET("/ws/events", handler.HandleEvents)
package ws
