package ws

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/WebIDE/backend/internal/terminal"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxMessageSize      = 1 << 20

	// Control frame payloads are capped at 125 bytes, two of which carry
	// the close code.
	maxCloseReason = 123
)

// MessageRecorder counts frames crossing a connection.
type MessageRecorder interface {
	RecordWSMessage(direction, msgType string)
}

// ConnConfig tunes keepalive and write deadlines.
type ConnConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	Recorder     MessageRecorder
}

func (c ConnConfig) withDefaults() ConnConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	return c
}

// Conn adapts a websocket connection to terminal.Channel. Output goes out
// as binary frames; input is accepted as binary or text. A ping is sent
// every PingInterval and the peer must answer within two intervals.
type Conn struct {
	ws  *websocket.Conn
	cfg ConnConfig

	closeOnce sync.Once
	done      chan struct{}
}

var _ terminal.Channel = (*Conn)(nil)

// NewConn wraps an upgraded connection and starts its keepalive.
func NewConn(ws *websocket.Conn, cfg ConnConfig) *Conn {
	cfg = cfg.withDefaults()
	c := &Conn{
		ws:   ws,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	pongWait := 2 * cfg.PingInterval
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()
	return c
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Receive returns the next data frame.
func (c *Conn) Receive() (terminal.Message, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return terminal.Message{}, err
	}

	kind := terminal.BinaryMessage
	if mt == websocket.TextMessage {
		kind = terminal.TextMessage
	}
	c.record("in", kind.String())
	return terminal.Message{Kind: kind, Data: data}, nil
}

// Send writes p as one binary frame.
func (c *Conn) Send(p []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return err
	}
	c.record("out", "binary")
	return nil
}

// SendJSON writes v as one JSON text frame.
func (c *Conn) SendJSON(v any) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return err
	}
	c.record("out", "text")
	return nil
}

// Close sends a normal closure frame and closes the connection.
func (c *Conn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

// CloseWithError closes the connection reporting err in the close frame.
// Admission failures the client may retry use 1013, anything else 1011.
func (c *Conn) CloseWithError(err error) error {
	code := websocket.CloseInternalServerErr
	if errors.Is(err, terminal.ErrTooManySessions) || errors.Is(err, terminal.ErrSpawnUnavailable) {
		code = websocket.CloseTryAgainLater
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return c.closeWith(code, reason)
}

// Done is closed once the connection has been closed locally.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) closeWith(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, truncateReason(reason))
		// The peer may already be gone; the close frame is best effort.
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) record(direction, kind string) {
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.RecordWSMessage(direction, kind)
	}
}

// truncateReason shortens s to fit a close frame without splitting a rune.
func truncateReason(s string) string {
	if len(s) <= maxCloseReason {
		return s
	}
	n := maxCloseReason
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
