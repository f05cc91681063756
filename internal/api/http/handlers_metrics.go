package http

import (
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics disables
// tracking.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackWorkspaceOperation times a workspace operation. Call the returned
// function with the operation's error.
func (hm *HandlerMetrics) TrackWorkspaceOperation(operation string) func(error) {
	return monitoring.NewTimer(hm.metrics, "workspace", operation).StopErr
}

// TrackSessionOperation times a terminal session operation.
func (hm *HandlerMetrics) TrackSessionOperation(operation string) func(error) {
	return monitoring.NewTimer(hm.metrics, "terminal", operation).StopErr
}
