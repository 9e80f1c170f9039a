// Package api exposes the airdrop operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/airdrop"
	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/scheduler"
)

const defaultRequestTimeout = 5 * time.Second

// AirdropService is the subset of airdrop.Service the handlers use.
type AirdropService interface {
	Submit(ctx context.Context, req airdrop.SubmitRequest) error
	Status(ctx context.Context, publicHash string) (*domain.StatusView, error)
	Claim(ctx context.Context, publicHash string) (*airdrop.ClaimReceipt, error)
}

// JobStatusProvider reports background job state for /health.
type JobStatusProvider interface {
	Status() []scheduler.JobStatus
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Service        AirdropService
	Jobs           JobStatusProvider
	RequestTimeout time.Duration
	// ServeMetrics mounts /metrics on this server.
	ServeMetrics bool
	Logger       logrus.FieldLogger
}

// NewServer builds the gin engine and its http.Server.
func NewServer(opts Options) (*gin.Engine, *http.Server) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	h := &handler{svc: opts.Service, timeout: opts.RequestTimeout, logger: opts.Logger}
	h.register(&r.RouterGroup)
	h.register(r.Group("/api"))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if opts.Jobs != nil {
			body["jobs"] = opts.Jobs.Status()
		}
		c.JSON(http.StatusOK, body)
	})
	if opts.ServeMetrics {
		r.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r, srv
}

// requestLogger logs one line per request.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
