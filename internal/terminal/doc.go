/*
Package terminal bridges pseudo-terminal processes to remote duplex channels.

A Session owns one child process started on a new pseudo-terminal and one
Channel, usually a websocket. Output is read by a relay goroutine in chunks
of up to ReadChunkSize bytes and handed, in order, to a single writer
goroutine; input is routed from the channel to the terminal on the goroutine
that called Run. Whichever side sees the end first (process exit, client
disconnect, a failed send, cancellation or an explicit Close) triggers a
teardown that runs exactly once:

	Created -> Running -> Closing -> Closed

A child that exits while jobs it started still hold the terminal open ends
the session after a short drain window. Teardown closes the terminal, hangs
up and if necessary kills every process left in the terminal's session, and
closes the channel.

The Manager admits sessions under a concurrency cap, gates spawning with a
circuit breaker, and tracks live sessions for listing and killing.

	mgr := terminal.NewManager(terminal.ManagerConfig{MaxSessions: 32}, logger).
		WithObserver(metrics).
		WithTracer(tracer)

	err := mgr.Serve(ctx, channel)
*/
package terminal
