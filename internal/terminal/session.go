package terminal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/shared/id"
)

// State is a session's lifecycle stage. Transitions only move forward.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reasons recorded when a session ends.
const (
	ReasonEOF         = "eof"
	ReasonDisconnect  = "disconnect"
	ReasonSendFailed  = "send_failed"
	ReasonCancelled   = "cancelled"
	ReasonKilled      = "killed"
	ReasonPanic       = "panic"
	ReasonSpawnFailed = "spawn_failed"
)

// ExitDrain is how long output may keep arriving after the child has been
// reaped. Jobs the child left running can hold the terminal open; once the
// window passes the session ends regardless.
const ExitDrain = 250 * time.Millisecond

// Traffic directions reported to observers.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// SpawnFunc starts the session's process.
type SpawnFunc func(SpawnConfig) (*Process, error)

// Observer receives session lifecycle and traffic events.
type Observer interface {
	SessionOpened()
	SessionClosed(reason string, lifetime time.Duration)
	SpawnFailed()
	BytesRelayed(direction string, n int)
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                     {}
func (nopObserver) SessionClosed(string, time.Duration) {}
func (nopObserver) SpawnFailed()                       {}
func (nopObserver) BytesRelayed(string, int)           {}

// Options configures a Session.
type Options struct {
	ID       id.SessionID
	Spawn    SpawnConfig
	Spawner  SpawnFunc
	Logger   *logging.Logger
	Observer Observer
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          id.SessionID `json:"id"`
	Pid         int          `json:"pid,omitempty"`
	Command     []string     `json:"command"`
	State       string       `json:"state"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	BytesIn     int64        `json:"bytes_in"`
	BytesOut    int64        `json:"bytes_out"`
	CloseReason string       `json:"close_reason,omitempty"`
}

// Session bridges one pseudo-terminal process and one client channel.
//
// Run drives the session on the caller's goroutine, which becomes the input
// router. Two more goroutines serve the output direction: the relay performs
// blocking terminal reads and hands each chunk, in order, to the writer,
// which is the only goroutine that sends on the channel. A third waits for
// the child to be reaped. Whichever path sees the end first triggers
// teardown; teardown runs exactly once.
type Session struct {
	id       id.SessionID
	channel  Channel
	spawnCfg SpawnConfig
	spawn    SpawnFunc
	logger   *logging.Logger
	observer Observer

	state   atomic.Int32
	stopped atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	closing sync.Once
	outbox  chan []byte
	workers sync.WaitGroup

	mu        sync.Mutex
	proc      *Process
	startedAt time.Time
	reason    string

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// NewSession returns a session in the Created state for an accepted channel.
func NewSession(ch Channel, opts Options) *Session {
	sid := opts.ID
	if sid == "" {
		sid = id.NewSessionID()
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = Spawn
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Session{
		id:       sid,
		channel:  ch,
		spawnCfg: opts.Spawn,
		spawn:    spawner,
		logger:   logger.With(zap.String("session_id", sid.String())),
		observer: observer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		outbox:   make(chan []byte),
	}
}

// ID returns the session id.
func (s *Session) ID() id.SessionID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run spawns the process and relays traffic until the session ends. It
// returns the *SpawnError when the process cannot be started, in which case
// the channel has already been closed with that error. Otherwise it returns
// nil once teardown has finished and every session goroutine has exited.
// Cancelling ctx tears the session down.
func (s *Session) Run(ctx context.Context) error {
	if s.State() != StateCreated {
		return ErrSessionClosed
	}

	proc, err := s.spawn(s.spawnCfg)
	if err != nil {
		s.observer.SpawnFailed()
		s.logger.Warn("Failed to spawn terminal process",
			zap.Strings("command", s.spawnCfg.argv()),
			zap.Error(err),
		)
		s.shutdown(ReasonSpawnFailed, err)
		return err
	}

	s.mu.Lock()
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		s.mu.Unlock()
		proc.Close()
		return ErrSessionClosed
	}
	s.proc = proc
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.observer.SessionOpened()
	s.logger.Info("Terminal session started",
		zap.Int("pid", proc.Pid()),
		zap.Strings("command", proc.Command()),
	)

	s.workers.Add(3)
	go s.relayOutput(proc)
	go s.deliverOutput()
	go s.watchExit(proc)
	go s.watchContext(ctx)

	s.routeInput(proc)

	<-s.done
	s.workers.Wait()
	return nil
}

// Close tears the session down from outside either relay path. It returns
// once the session is Closed.
func (s *Session) Close() {
	s.shutdown(ReasonKilled, nil)
}

func (s *Session) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.shutdown(ReasonCancelled, nil)
	case <-s.done:
	}
}

// watchExit ends the session once the child has been reaped and ExitDrain
// has passed. Normally the relay reaches end of stream first; this covers a
// terminal kept open by jobs that outlived the child.
func (s *Session) watchExit(proc *Process) {
	defer s.workers.Done()

	select {
	case <-proc.Done():
	case <-s.stop:
		return
	}

	timer := time.NewTimer(ExitDrain)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.shutdown(ReasonEOF, nil)
	case <-s.stop:
	}
}

// shutdown performs teardown exactly once: mark Closing, signal stop, close
// the terminal, close the channel, mark Closed. Callers arriving while it
// runs block until it has finished.
func (s *Session) shutdown(reason string, cause error) {
	s.closing.Do(func() {
		s.mu.Lock()
		prev := State(s.state.Swap(int32(StateClosing)))
		s.reason = reason
		proc := s.proc
		startedAt := s.startedAt
		s.mu.Unlock()

		s.stopped.Store(true)
		close(s.stop)

		if proc != nil {
			proc.Close()
		}

		var err error
		if cause != nil {
			err = s.channel.CloseWithError(cause)
		} else {
			err = s.channel.Close()
		}
		if err != nil {
			s.logger.Debug("Channel close reported an error", zap.Error(err))
		}

		s.state.Store(int32(StateClosed))
		close(s.done)

		if prev == StateRunning {
			lifetime := time.Since(startedAt)
			s.observer.SessionClosed(reason, lifetime)
			s.logger.Info("Terminal session closed",
				zap.String("reason", reason),
				zap.Duration("lifetime", lifetime),
				zap.Int("exit_code", proc.ExitCode()),
				zap.Int64("bytes_in", s.bytesIn.Load()),
				zap.Int64("bytes_out", s.bytesOut.Load()),
			)
		}
	})
}

// recoverPanic turns a panic in a relay path into an ordinary teardown.
// It must be deferred directly.
func (s *Session) recoverPanic(path string) {
	if r := recover(); r != nil {
		s.logger.Error("Terminal relay panicked",
			zap.String("path", path),
			zap.Any("panic", r),
		)
		s.shutdown(ReasonPanic, fmt.Errorf("%s failed", path))
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:          s.id,
		Command:     s.spawnCfg.argv(),
		State:       s.State().String(),
		StartedAt:   s.startedAt,
		BytesIn:     s.bytesIn.Load(),
		BytesOut:    s.bytesOut.Load(),
		CloseReason: s.reason,
	}
	if s.proc != nil {
		info.Pid = s.proc.Pid()
		info.Command = s.proc.Command()
	}
	return info
}
