package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts the control API on router. tail may be nil when the live
// tail is disabled.
func (h *Handlers) Register(router gin.IRouter, tail gin.HandlerFunc) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/status", h.Status)
	router.GET("/mode", h.GetMode)
	router.PUT("/mode", h.SetMode)
	router.POST("/drain", h.Drain)

	router.GET("/log-level", h.GetLogLevel)
	router.PUT("/log-level", h.SetLogLevel)

	router.GET("/metrics", h.Metrics)
	router.GET("/metrics/json", h.MetricsJSON)

	if tail != nil {
		router.GET("/ws/tail", tail)
	}
}
