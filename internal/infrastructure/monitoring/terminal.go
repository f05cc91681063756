package monitoring

import "time"

// The methods below let *Metrics observe terminal sessions.

// SessionOpened counts a session entering Running.
func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.snapshot.TotalSessions++
	m.mu.Unlock()
}

// SessionClosed records a session's end.
func (m *Metrics) SessionClosed(reason string, lifetime time.Duration) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(lifetime.Seconds())
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// SpawnFailed counts a process that could not be started.
func (m *Metrics) SpawnFailed() {
	m.SpawnFailures.Inc()
}

// BytesRelayed counts terminal traffic in one direction.
func (m *Metrics) BytesRelayed(direction string, n int) {
	m.TerminalBytes.WithLabelValues(direction).Add(float64(n))
}
