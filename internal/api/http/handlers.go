package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebIDE/backend/internal/shared/id"
	"github.com/GriffinCanCode/WebIDE/backend/internal/terminal"
	"github.com/GriffinCanCode/WebIDE/backend/internal/workspace"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	workspace *workspace.Workspace
	terminals *terminal.Manager
	metrics   *monitoring.Metrics
	tracker   *HandlerMetrics
	logger    *logging.Logger
	started   time.Time
}

// NewHandlers creates a new handlers instance. metrics may be nil.
func NewHandlers(ws *workspace.Workspace, terminals *terminal.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		workspace: ws,
		terminals: terminals,
		metrics:   metrics,
		tracker:   NewHandlerMetrics(metrics),
		logger:    logger.Named("http"),
		started:   time.Now(),
	}
}

// Health returns health status
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"workspace":      h.workspace.Root(),
		"terminal": gin.H{
			"sessions": h.terminals.Count(),
			"spawner":  h.terminals.BreakerSnapshot(),
		},
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListSessions lists live terminal sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.terminals.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// KillSession tears down a terminal session
func (h *Handlers) KillSession(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	done := h.tracker.TrackSessionOperation("kill")
	err = h.terminals.Kill(sid)
	done(err)

	if errors.Is(err, terminal.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to kill session", zap.String("session_id", sid.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"id": sid,
	})
}
