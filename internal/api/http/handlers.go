package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/teelog/internal/session"
	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

// Version is reported by the root endpoint.
var Version = "dev"

// Controller is the part of a session the API drives.
type Controller interface {
	Status() session.Status
	Mode() (uint32, error)
	SetMode(mode uint32) error
	DrainNow(ctx context.Context) (shmlog.Stats, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	session Controller
}

// NewHandlers creates a new handler set. The session is attached later
// with SetSession; until then session endpoints answer 503.
func NewHandlers(logger *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{logger: logger, metrics: metrics}
}

// SetSession installs (or with nil, removes) the session the API controls.
func (h *Handlers) SetSession(s Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = s
}

func (h *Handlers) current(c *gin.Context) (Controller, bool) {
	h.mu.RLock()
	s := h.session
	h.mu.RUnlock()
	if s == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "not attached to a log region",
		})
		return nil, false
	}
	return s, true
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "teelog",
		"version": Version,
	})
}

// Health reports whether the bridge is attached and draining. It answers
// 200 either way so a prober can tell "up but waiting" from "down".
func (h *Handlers) Health(c *gin.Context) {
	h.mu.RLock()
	s := h.session
	h.mu.RUnlock()

	status := "healthy"
	attached, running := false, false
	if s != nil {
		st := s.Status()
		attached = !st.Detached
		running = st.Running
	}
	if !attached || !running {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"attached": attached,
		"running":  running,
		"uptime":   time.Since(h.metrics.StartTime()).Round(time.Second).String(),
	})
}

// Status returns the session cursors and drain totals
func (h *Handlers) Status(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s.Status(),
		"drain":   h.metrics.Snapshot(),
	})
}

// ModeRequest toggles draining. Mode wins over Enabled when both are set.
type ModeRequest struct {
	Mode    *uint32 `json:"mode"`
	Enabled *bool   `json:"enabled"`
}

// GetMode returns the consumer mode from the control block
func (h *Handlers) GetMode(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	mode, err := s.Mode()
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "enabled": mode != shmlog.ModeDisabled})
}

// SetMode enables or disables draining
func (h *Handlers) SetMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	var mode uint32
	switch {
	case req.Mode != nil:
		mode = *req.Mode
	case req.Enabled != nil:
		if *req.Enabled {
			mode = shmlog.ModeEnabled
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "mode or enabled is required"})
		return
	}

	s, ok := h.current(c)
	if !ok {
		return
	}
	if err := s.SetMode(mode); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "mode": mode, "enabled": mode != shmlog.ModeDisabled})
}

// Drain runs one drain cycle immediately
func (h *Handlers) Drain(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := s.DrainNow(ctx)
	if err != nil && !errors.Is(err, shmlog.ErrReassembly) {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   err == nil,
		"skipped":   stats.Skipped,
		"bytes":     stats.Bytes,
		"lines":     stats.Lines,
		"synthetic": stats.Synthetic,
		"reader":    stats.Reader,
		"writer":    stats.Writer,
		"wrapped":   stats.Wrapped,
	})
}

// LevelRequest changes the daemon's own log level
type LevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// GetLogLevel returns the current log level
func (h *Handlers) GetLogLevel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"level": h.logger.Level()})
}

// SetLogLevel changes the log level at runtime
func (h *Handlers) SetLogLevel(c *gin.Context) {
	var req LevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "level is required"})
		return
	}
	if err := h.logger.SetLevel(req.Level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.logger.Info("Log level changed", zap.String("level", req.Level))
	c.JSON(http.StatusOK, gin.H{"success": true, "level": h.logger.Level()})
}

// Metrics serves the Prometheus registry
func (h *Handlers) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON returns the drain totals as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *Handlers) sessionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrDetached):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	h.logger.Warn("Session request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
