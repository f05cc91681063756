/*
Package resilience provides a circuit breaker for operations that fail in
bursts.

The terminal manager runs every process spawn through a breaker: when the
configured shell keeps failing to start (missing binary, exhausted process
table) new connections are refused quickly instead of forking again and
again.

# Usage

	breaker := resilience.New("terminal-spawn", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	proc, err := resilience.Call(breaker, func() (*terminal.Process, error) {
		return terminal.Spawn(cfg)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
