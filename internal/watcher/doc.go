// Package watcher turns file system notifications under the workspace root
// into debounced batches of change events for connected editors.
package watcher
