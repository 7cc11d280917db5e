// Package server exposes operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/metrics"
	"github.com/Iron-Ham/agentops/internal/operation"
	"github.com/Iron-Ham/agentops/internal/pipeline"
	"github.com/Iron-Ham/agentops/internal/workflow"
)

// Config holds the listener settings.
type Config struct {
	Addr        string
	CORSOrigins []string
	Version     string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkflows enables POST /api/workflows/:name.
func WithWorkflows(c *workflow.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithMetrics records answer submissions on m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithRelay mounts the permission relay on /mcp.
func WithRelay(h http.Handler) Option {
	return func(s *Server) { s.relay = h }
}

// Server serves the operation API.
type Server struct {
	cfg      Config
	orch     *pipeline.Orchestrator
	registry *operation.Registry
	catalog  *workflow.Catalog
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	relay    http.Handler
	logger   *logging.Logger

	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	started    time.Time
}

// New creates a Server. It panics if orch is nil.
func New(cfg Config, orch *pipeline.Orchestrator, opts ...Option) *Server {
	if orch == nil {
		panic("server: New requires a non-nil Orchestrator")
	}

	s := &Server{
		cfg:      cfg,
		orch:     orch,
		registry: orch.Registry(),
		logger:   logging.NopLogger(),
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.Use(cors.New(s.corsConfig()))
	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) corsConfig() cors.Config {
	c := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.cfg.CORSOrigins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"}
	c.AllowWebSockets = true
	return c
}

func (s *Server) routes() {
	s.engine.GET("/api/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/events", s.handleSSE)

		ops := api.Group("/operations")
		ops.POST("", s.handleStartOperation)
		ops.GET("", s.handleListOperations)
		ops.POST("/kill", s.handleKill)
		ops.POST("/answer", s.handleAnswer)
		ops.GET("/:id", s.handleGetOperation)
		ops.GET("/:id/events", s.handleOperationEvents)
		ops.GET("/:id/ws", s.handleWebSocket)

		if s.catalog != nil {
			api.GET("/workflows", s.handleListWorkflows)
			api.POST("/workflows/:name", s.handleStartWorkflow)
		}
	}

	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	if s.relay != nil {
		s.engine.Any("/mcp", gin.WrapH(s.relay))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones until ctx is
// done. Streams are closed by cancelling their request contexts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Uptime    string `json:"uptime"`
	Running   int    `json:"running"`
	Operation int    `json:"operations"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.cfg.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Running:   len(s.registry.Running()),
		Operation: len(s.registry.List()),
	})
}
