package terminal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionClosed is returned when operating on a session that has
	// already started or finished teardown.
	ErrSessionClosed = errors.New("terminal session closed")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("terminal session not found")

	// ErrTooManySessions is returned when the concurrent session cap is reached.
	ErrTooManySessions = errors.New("too many terminal sessions")

	// ErrSpawnUnavailable is returned while spawning is suspended after
	// repeated failures.
	ErrSpawnUnavailable = errors.New("terminal spawning temporarily unavailable")

	// ErrManagerClosed is returned once the manager has been shut down.
	ErrManagerClosed = errors.New("terminal manager shut down")
)

// SpawnError reports that the child process could not be created or its
// image could not be executed.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
