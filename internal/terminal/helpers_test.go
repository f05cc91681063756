package terminal

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var errChannelClosed = errors.New("channel closed")

// fakeChannel is an in-memory Channel. The test plays the remote client.
type fakeChannel struct {
	in     chan Message
	gone   chan struct{}
	closed chan struct{}

	hangupOnce sync.Once
	closeOnce  sync.Once
	closeCalls atomic.Int32

	mu          sync.Mutex
	out         bytes.Buffer
	closeErr    error
	panicOnSend bool
	failSend    bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		in:     make(chan Message, 16),
		gone:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Receive() (Message, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.gone:
		return Message{}, io.EOF
	case <-c.closed:
		return Message{}, errChannelClosed
	}
}

func (c *fakeChannel) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.panicOnSend {
		panic("send exploded")
	}
	if c.failSend {
		return errors.New("broken pipe")
	}
	select {
	case <-c.closed:
		return errChannelClosed
	default:
	}
	c.out.Write(p)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeCalls.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) CloseWithError(err error) error {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	return c.Close()
}

// type sends client input as a text frame.
func (c *fakeChannel) typeText(s string) {
	c.in <- Message{Kind: TextMessage, Data: []byte(s)}
}

// hangup simulates the remote side going away.
func (c *fakeChannel) hangup() {
	c.hangupOnce.Do(func() { close(c.gone) })
}

func (c *fakeChannel) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *fakeChannel) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *fakeChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type countingObserver struct {
	opened   atomic.Int32
	closed   atomic.Int32
	failures atomic.Int32
	in       atomic.Int64
	out      atomic.Int64

	mu      sync.Mutex
	reasons []string
}

func (o *countingObserver) SessionOpened() { o.opened.Add(1) }

func (o *countingObserver) SessionClosed(reason string, _ time.Duration) {
	o.closed.Add(1)
	o.mu.Lock()
	o.reasons = append(o.reasons, reason)
	o.mu.Unlock()
}

func (o *countingObserver) SpawnFailed() { o.failures.Add(1) }

func (o *countingObserver) BytesRelayed(direction string, n int) {
	if direction == DirectionInput {
		o.in.Add(int64(n))
	} else {
		o.out.Add(int64(n))
	}
}

func shell(script string) SpawnConfig {
	return SpawnConfig{Command: []string{"/bin/sh", "-c", script}, CloseGrace: 500 * time.Millisecond}
}

const waitFor = 5 * time.Second
const tick = 10 * time.Millisecond
