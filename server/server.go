// Package server exposes the orchestrator over an HTTP JSON API built on gin.
//
//	POST   /api/v1/chat
//	POST   /api/v1/documents
//	POST   /api/v1/documents/upload
//	GET    /api/v1/sessions/:id/history
//	DELETE /api/v1/sessions/:id
//	GET    /api/v1/tools
//	GET    /api/v1/health
//	GET    /metrics
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
)

// Service is the orchestrator surface served over HTTP.
// *agent.Orchestrator implements it.
type Service interface {
	ProcessQuery(ctx context.Context, query string, optFns ...func(q *agent.QueryOptions)) (*core.AgentResponse, error)
	AddDocuments(ctx context.Context, docs []core.Document) (bool, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]core.Interaction, error)
	ClearHistory(ctx context.Context, sessionID string) (bool, error)
	ListTools() []core.ToolInfo
	HealthCheck(ctx context.Context) core.HealthReport
}

// Options configures the HTTP server.
type Options struct {
	Logger  logging.Logger
	Metrics metrics.Recorder
	// MetricsHandler is mounted on GET /metrics when set.
	MetricsHandler http.Handler
	// MaxUploadBytes caps a single uploaded document (defaults to 10 MiB).
	MaxUploadBytes int64
	// MaxChatBytes caps a chat request body (defaults to 1 MiB).
	MaxChatBytes int64
	// DefaultHistoryLimit applies when the history request has no limit.
	DefaultHistoryLimit int
}

// Server routes API requests to a Service.
type Server struct {
	svc     Service
	opts    Options
	logger  logging.Logger
	metrics metrics.Recorder
	engine  *gin.Engine
}

// New builds the router.
func New(svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		MaxUploadBytes:      10 << 20,
		MaxChatBytes:        1 << 20,
		DefaultHistoryLimit: 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxChatBytes <= 0 {
		opts.MaxChatBytes = 1 << 20
	}

	s := &Server{
		svc:     svc,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: metrics.OrNoop(opts.Metrics),
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	api := s.engine.Group("/api/v1")
	api.POST("/chat", s.chat)
	api.POST("/documents", s.addDocuments)
	api.POST("/documents/upload", s.uploadDocuments)
	api.GET("/sessions/:id/history", s.history)
	api.DELETE("/sessions/:id", s.clearSession)
	api.GET("/tools", s.tools)
	api.GET("/health", s.health)

	if opts.MetricsHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// requestLogger logs and measures every request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		dur := time.Since(start)
		status := c.Writer.Status()
		s.metrics.ObserveHTTP(c.Request.Method, route, status, dur)

		args := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", dur.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("http.request", args...)
			return
		}
		s.logger.Info("http.request", args...)
	}
}
