// Package main is the entry point for the Web IDE backend server.
//
// The server exposes a sandboxed workspace over a small file API, serves the
// browser frontend, and bridges browser terminals to shell processes running
// on pseudo-terminals:
//
//	Browser ──HTTP──> /api/{list,read,write,tree,search}  ──> workspace
//	        ──WS────> /ws/term    ──> terminal session ──> pty ──> $SHELL
//	        ──WS────> /ws/events  <── fsnotify watcher
//
// Configuration:
//   - Defaults, then an optional YAML or TOML file (--config or CONFIG_FILE)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	server serve --root ./project --port 8000
//	server build --src public --dest dist
package main
