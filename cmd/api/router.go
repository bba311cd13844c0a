package api

import (
	"net/http"

	"plan-notifier/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// SetupRoutes registers the push endpoint, health check and metrics scrape.
// pushAuth may be nil when OIDC verification is disabled.
func SetupRoutes(r *gin.Engine, h *Handler, pushAuth gin.HandlerFunc, gatherer prometheus.Gatherer) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	events := r.Group("/v1")
	if pushAuth != nil {
		events.Use(pushAuth)
	}
	events.POST("/events", h.HandlePush)
}
