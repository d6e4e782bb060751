// =============================
// File: internal/api/server.go
// =============================
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
	"github.com/rovshanmuradov/graph-arbitrage/internal/events"
	"github.com/rovshanmuradov/graph-arbitrage/internal/routefile"
	"github.com/rovshanmuradov/graph-arbitrage/internal/service"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
)

// Executor is the submission surface the API drives. service.Service
// implements it.
type Executor interface {
	Submit(ctx context.Context, req *arbitrage.ExecutionRequest) (*arbitrage.ExecutionResult, error)
	SubmitBatch(ctx context.Context, reqs []*arbitrage.ExecutionRequest) []service.Outcome
	Validate(req *arbitrage.ExecutionRequest) error
	Cancel(ctx context.Context, reason string) error
}

// HistoryReader serves the audit trail when no database is configured.
// audit.History implements it.
type HistoryReader interface {
	Recent(limit int) []audit.Record
	Find(requestID string) (audit.Record, bool)
	Stats() audit.HistoryStats
}

// StreamMetrics counts websocket subscribers. metrics.Collector implements it.
type StreamMetrics interface {
	StreamClientConnected()
	StreamClientDisconnected()
}

// Config is the HTTP server configuration.
type Config struct {
	Listen       string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Deps are the collaborators of the server. Executor and Logger are
// required; everything else switches the matching endpoints on.
type Deps struct {
	Executor Executor
	Defaults routefile.Defaults
	Store    storage.Store
	History  HistoryReader
	Bus      *events.Bus
	Stream   StreamMetrics
	Metrics  http.Handler
	// Health checks upstream dependencies such as the RPC node.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

type Server struct {
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer builds the router.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		deps:   deps,
		logger: deps.Logger.Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	g := router.Group("/api/v1")
	g.POST("/executions", s.submitExecution)
	g.POST("/executions/batch", s.submitBatch)
	g.POST("/validate", s.validateRoute)
	g.POST("/cancel", s.cancel)
	g.GET("/executions", s.listExecutions)
	g.GET("/executions/:id", s.getExecution)
	g.GET("/stats", s.stats)
	if deps.Bus != nil {
		g.GET("/stream", s.stream)
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background. Errors after startup are logged.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}
	s.logger.Info("API server has stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
