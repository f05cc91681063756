// Package build prepares the frontend for distribution: it mirrors the
// public directory into an output directory, precompresses text assets so
// the static handler can serve them with Content-Encoding: gzip, and stamps
// the output with its build time.
package build
