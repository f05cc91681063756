package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	// ReadChunkSize is the largest chunk the output relay reads at once.
	ReadChunkSize = 1024

	defaultCloseGrace = 2 * time.Second
	killWait          = 2 * time.Second
	sessionPoll       = 25 * time.Millisecond
)

// SpawnConfig describes the child to start on a new pseudo-terminal.
type SpawnConfig struct {
	// Command is the argv to execute. Empty means DefaultShell().
	Command []string
	// Dir is the child's working directory. Empty inherits the server's.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the server's environment.
	Env []string
	// Rows and Cols set the initial window size when both are non-zero.
	Rows uint16
	Cols uint16
	// CloseGrace bounds how long Close waits for the child to exit after
	// hangup before killing its process group.
	CloseGrace time.Duration
}

func (c SpawnConfig) argv() []string {
	if len(c.Command) == 0 {
		return []string{DefaultShell()}
	}
	return c.Command
}

// Process is a child process attached to a pseudo-terminal. The master
// descriptor is owned exclusively by the Process.
type Process struct {
	cmd     *exec.Cmd
	master  *os.File
	pid     int
	command []string
	grace   time.Duration

	closed    atomic.Bool
	closeOnce sync.Once

	exited   chan struct{}
	exitCode int
}

// Spawn starts cfg's command as the session leader of a new pseudo-terminal.
// Failures to create the process or exec its image are returned as
// *SpawnError.
func Spawn(cfg SpawnConfig) (*Process, error) {
	argv := cfg.argv()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, cfg.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{}
	setDeathSignal(cmd.SysProcAttr)

	var size *pty.Winsize
	if cfg.Rows > 0 && cfg.Cols > 0 {
		size = &pty.Winsize{Rows: cfg.Rows, Cols: cfg.Cols}
	}

	// StartWithSize adds Setsid and Setctty, making the pty the child's
	// controlling terminal and the child its own process group leader.
	master, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, &SpawnError{Command: argv, Err: err}
	}
	if master, err = pollable(master); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, &SpawnError{Command: argv, Err: err}
	}

	grace := cfg.CloseGrace
	if grace <= 0 {
		grace = defaultCloseGrace
	}

	p := &Process{
		cmd:      cmd,
		master:   master,
		pid:      cmd.Process.Pid,
		command:  argv,
		grace:    grace,
		exited:   make(chan struct{}),
		exitCode: -1,
	}
	go p.reap()

	return p, nil
}

// pollable replaces f with a close-on-exec, non-blocking duplicate that the
// runtime poller owns. pty hands the master back in blocking mode, where a
// Read in flight keeps Close from releasing the descriptor; through the
// poller Close interrupts it.
func pollable(f *os.File) (*os.File, error) {
	fd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("duplicate pty master: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set pty master non-blocking: %w", err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

// reap waits for the child so it never lingers as a zombie.
func (p *Process) reap() {
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	} else if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	p.exitCode = code
	close(p.exited)
}

// Read blocks until output is available and returns up to max bytes. An
// empty result means end of stream: the descriptor was closed, the child
// exited, or the read failed. None of those are errors for the caller.
func (p *Process) Read(max int) []byte {
	if p.closed.Load() {
		return nil
	}
	if max <= 0 {
		max = ReadChunkSize
	}

	buf := make([]byte, max)
	n, _ := p.master.Read(buf)
	if n <= 0 {
		return nil
	}
	return buf[:n]
}

// Write sends input to the terminal. It is best effort: once the terminal is
// closed or dying the bytes are dropped without error.
func (p *Process) Write(data []byte) {
	if len(data) == 0 || p.closed.Load() {
		return
	}
	_, _ = p.master.Write(data)
}

// Close releases the master descriptor and makes sure nothing started on
// the terminal survives it. Closing the master hangs up the terminal and
// interrupts a pending Read. Every process still in the terminal's session
// then gets SIGHUP, including jobs the shell left behind when it exited, and
// whatever outlives the grace period is killed. Close is idempotent.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		_ = p.master.Close()
		p.terminate()
	})
}

func (p *Process) terminate() {
	if p.waitGone(0) {
		return
	}
	p.signalSession(syscall.SIGHUP)
	if p.waitGone(p.grace) {
		return
	}
	p.signalSession(syscall.SIGKILL)
	p.waitGone(killWait)
}

// signalSession sends sig to the leader and to every live member of the
// session it leads. The leader is signalled through os.Process, which is a
// no-op once it has been reaped. A member that exits between the scan and
// the kill could in principle have its pid reused in that window; the
// window is a single syscall wide.
func (p *Process) signalSession(sig syscall.Signal) {
	for _, pid := range sessionMembers(p.pid) {
		if pid != p.pid {
			_ = syscall.Kill(pid, sig)
		}
	}
	_ = p.cmd.Process.Signal(sig)
}

// waitGone waits up to timeout for the leader to be reaped and the rest of
// its session to exit. A zero timeout checks once.
func (p *Process) waitGone(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if p.waitExit(0) && len(sessionMembers(p.pid)) == 0 {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		step := min(sessionPoll, remaining)
		if p.waitExit(0) {
			time.Sleep(step)
		} else {
			p.waitExit(step)
		}
	}
}

func (p *Process) waitExit(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-p.exited:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	}
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.pid
}

// Command returns the argv the child was started with.
func (p *Process) Command() []string {
	return p.command
}

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

// ExitCode returns the child's exit status, or -1 while it is still running
// or when it was ended by a signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.exited:
		return p.exitCode
	default:
		return -1
	}
}
