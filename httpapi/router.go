// Package httpapi is the broker's operational HTTP surface: health checks,
// registry introspection, and Prometheus scraping. It never touches the
// pub/sub wire protocol itself.
//
// The router is a gin engine with the gin-contrib/zap middleware stack for
// access logging and panic recovery. /metrics serves promhttp.HandlerFor
// against a private prometheus.Registry rather than the global one.
package httpapi

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/neuropipe/broker/internal/metrics"
	"github.com/neuropipe/broker/registry"
)

// SessionCounter is the subset of broker.Broker the router needs, kept as
// an interface so this package never imports broker and creates a cycle.
type SessionCounter interface {
	SessionCount() int
}

// NewRouter builds the gin engine serving the admin surface.
func NewRouter(debugHTTP bool, sessions SessionCounter, reg *registry.Registry, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/healthz"},
	}))
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats := reg.Stats()
		c.JSON(200, gin.H{
			"activeSessions":     sessions.SessionCount(),
			"topicCount":         stats.TopicCount,
			"subscribersByTopic": stats.SubscribersByTopic,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return r
}
