package main

import (
	"context"
	"net/http"
	"time"

	"birdwatch-support/internal/common/logger"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
	submit "birdwatch-support/internal/workers/support/submit-issue-report"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type routerOptions struct {
	ServiceName    string
	AllowedOrigins []string
	// Issues is nil when the server only runs the mail gateway.
	Issues  *submit.HTTPHandler
	Gateway *emailsend.HTTPHandler
	Ready   func(ctx context.Context) error
	Logger  logger.Logger
}

func newRouter(opts routerOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestLogger(opts.Logger))
	router.RedirectTrailingSlash = false

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The gateway sets its own fixed CORS headers.
	if opts.Gateway != nil {
		opts.Gateway.Register(router)
	}

	if opts.Issues != nil {
		corsConfig := cors.DefaultConfig()
		if len(opts.AllowedOrigins) > 0 {
			corsConfig.AllowOrigins = opts.AllowedOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		opts.Issues.Register(router.Group("", cors.New(corsConfig)))
	}

	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			log.Error("HTTP request failed", fields)
		case status >= 400:
			log.Warn("HTTP request rejected", fields)
		default:
			log.Debug("HTTP request", fields)
		}
	}
}
