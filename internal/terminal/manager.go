package terminal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/WebIDE/backend/internal/shared/id"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int
	// Spawn is the template every session's process is started from.
	Spawn SpawnConfig
	// Breaker controls when repeated spawn failures suspend spawning.
	Breaker resilience.Settings
	// Spawner overrides Spawn, mainly for tests.
	Spawner SpawnFunc
}

// DefaultBreakerSettings opens after five consecutive spawn failures and
// probes again after ten seconds.
func DefaultBreakerSettings() resilience.Settings {
	return resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: HostFailure,
	}
}

// HostFailure reports whether a spawn error points at the host rather than
// at the configured command. A command that is missing or not executable
// fails the same way on every attempt and does not open the breaker;
// exhausted processes, descriptors or terminals do.
func HostFailure(err error) bool {
	return !errors.Is(err, exec.ErrNotFound) &&
		!errors.Is(err, fs.ErrNotExist) &&
		!errors.Is(err, fs.ErrPermission)
}

// Manager admits, tracks and tears down terminal sessions.
type Manager struct {
	cfg      ManagerConfig
	logger   *logging.Logger
	breaker  *resilience.Breaker
	observer Observer
	tracer   *tracing.Tracer

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
	closed   bool
	serving  sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("terminal")

	settings := cfg.Breaker
	if settings.ReadyToTrip == nil {
		settings = DefaultBreakerSettings()
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("Spawn breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		breaker:  resilience.New("terminal-spawn", settings),
		observer: nopObserver{},
		sessions: make(map[id.SessionID]*Session),
	}
}

// WithObserver attaches an observer to every session started afterwards.
func (m *Manager) WithObserver(observer Observer) *Manager {
	if observer != nil {
		m.observer = observer
	}
	return m
}

// WithTracer records a "terminal.session" span for every session.
func (m *Manager) WithTracer(tracer *tracing.Tracer) *Manager {
	m.tracer = tracer
	return m
}

// Serve runs one terminal session over ch and returns when it has ended.
// If the session cannot be admitted, ch is closed with the reason and the
// admission error is returned.
func (m *Manager) Serve(ctx context.Context, ch Channel) error {
	sess, err := m.admit(ch)
	if err != nil {
		m.logger.Warn("Terminal session rejected", zap.Error(err))
		_ = ch.CloseWithError(err)
		return err
	}
	defer m.release(sess)

	var span *tracing.Span
	if m.tracer != nil {
		span, ctx = m.tracer.StartSpan(ctx, "terminal.session")
		span.SetTag("session_id", sess.ID().String())
	}

	err = sess.Run(ctx)

	if span != nil {
		info := sess.Info()
		span.SetTag("reason", info.CloseReason)
		span.SetTag("pid", strconv.Itoa(info.Pid))
		span.SetTag("bytes_in", strconv.FormatInt(info.BytesIn, 10))
		span.SetTag("bytes_out", strconv.FormatInt(info.BytesOut, 10))
		if err != nil {
			span.SetError(err)
		}
		m.tracer.End(span)
	}

	if errors.Is(err, ErrSessionClosed) {
		// Closed by Kill or Shutdown before it got going.
		return nil
	}
	return err
}

func (m *Manager) admit(ch Channel) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.cfg.MaxSessions)
	}
	if !m.breaker.Ready() {
		return nil, ErrSpawnUnavailable
	}

	sess := NewSession(ch, Options{
		Spawn:    m.cfg.Spawn,
		Spawner:  m.spawn,
		Logger:   m.logger,
		Observer: m.observer,
	})
	m.sessions[sess.ID()] = sess
	m.serving.Add(1)
	return sess, nil
}

func (m *Manager) release(sess *Session) {
	m.mu.Lock()
	delete(m.sessions, sess.ID())
	m.mu.Unlock()
	m.serving.Done()
}

// spawn starts a process through the circuit breaker.
func (m *Manager) spawn(cfg SpawnConfig) (*Process, error) {
	spawner := m.cfg.Spawner
	if spawner == nil {
		spawner = Spawn
	}

	proc, err := resilience.Call(m.breaker, func() (*Process, error) {
		return spawner(cfg)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, &SpawnError{Command: cfg.argv(), Err: fmt.Errorf("%w: %w", ErrSpawnUnavailable, err)}
	}
	return proc, err
}

// Get returns a snapshot of one session.
func (m *Manager) Get(sid id.SessionID) (Info, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return sess.Info(), nil
}

// List returns snapshots of all live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		infos = append(infos, sess.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Kill tears down a session. It returns once the session is Closed.
func (m *Manager) Kill(sid id.SessionID) error {
	m.mu.RLock()
	sess, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	m.logger.Info("Killing terminal session", zap.String("session_id", sid.String()))
	sess.Close()
	return nil
}

// BreakerSnapshot reports the spawn breaker's state.
func (m *Manager) BreakerSnapshot() resilience.Snapshot {
	return m.breaker.Snapshot()
}

// Shutdown stops admitting sessions, closes every live one and waits for
// their Serve calls to return or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	live := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		live = append(live, sess)
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down terminal sessions", zap.Int("count", len(live)))

	var wg sync.WaitGroup
	for _, sess := range live {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(sess)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		m.serving.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminal shutdown: %w", ctx.Err())
	}
}
