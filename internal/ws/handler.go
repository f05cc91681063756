package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/api/middleware"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/terminal"
	"github.com/GriffinCanCode/WebIDE/backend/internal/watcher"
)

// ConnectionGauge tracks open connections per endpoint.
type ConnectionGauge interface {
	IncWSConnections(endpoint string)
	DecWSConnections(endpoint string)
}

// Subscriber is the source of workspace change batches.
type Subscriber interface {
	Subscribe() (<-chan watcher.Batch, func())
}

// Options configures a Handler.
type Options struct {
	AllowedOrigins []string
	Conn           ConnConfig
	Gauge          ConnectionGauge
	Logger         *logging.Logger
}

// Handler manages WebSocket connections
type Handler struct {
	terminals *terminal.Manager
	events    Subscriber
	upgrader  websocket.Upgrader
	opts      Options
	logger    *logging.Logger
}

// NewHandler creates a new WebSocket handler. events may be nil, in which
// case the events endpoint only keeps the connection open.
func NewHandler(terminals *terminal.Manager, events Subscriber, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	h := &Handler{
		terminals: terminals,
		events:    events,
		opts:      opts,
		logger:    logger.Named("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(opts.AllowedOrigins, r.Header.Get("Origin"), r.Host)
		},
	}
	return h
}

func (h *Handler) upgrade(c *gin.Context, endpoint string) (*Conn, bool) {
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("endpoint", endpoint),
			zap.String("origin", c.GetHeader("Origin")),
			zap.Error(err),
		)
		return nil, false
	}
	if h.opts.Gauge != nil {
		h.opts.Gauge.IncWSConnections(endpoint)
	}
	return NewConn(raw, h.opts.Conn), true
}

func (h *Handler) release(endpoint string) {
	if h.opts.Gauge != nil {
		h.opts.Gauge.DecWSConnections(endpoint)
	}
}

// HandleTerminal upgrades the request and bridges it to a new terminal
// session until either side ends it.
func (h *Handler) HandleTerminal(c *gin.Context) {
	conn, ok := h.upgrade(c, "term")
	if !ok {
		return
	}
	defer h.release("term")

	// A hijacked request's context is not cancelled on disconnect; the
	// session notices through the channel instead.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.terminals.Serve(ctx, conn); err != nil {
		h.logger.Info("Terminal session ended with error", zap.Error(err))
	}
}

// HandleEvents streams workspace change batches as JSON text frames.
func (h *Handler) HandleEvents(c *gin.Context) {
	conn, ok := h.upgrade(c, "events")
	if !ok {
		return
	}
	defer h.release("events")
	defer conn.Close()

	// Drain inbound frames so pongs and close frames are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, err := conn.Receive(); err != nil {
				return
			}
		}
	}()

	var batches <-chan watcher.Batch
	if h.events != nil {
		ch, cancel := h.events.Subscribe()
		defer cancel()
		batches = ch
	}

	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if err := conn.SendJSON(batch); err != nil {
				h.logger.Debug("Failed to send change batch", zap.Error(err))
				return
			}
		case <-gone:
			return
		}
	}
}
