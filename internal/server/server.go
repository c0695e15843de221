// Package server exposes the nesting controller and the order store over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/controller"
	"github.com/piwi3910/SlabNest/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a running controller.
type Server struct {
	ctrl     *controller.Controller
	store    *store.Store
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	hub      *hub
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore enables the order nesting routes.
func WithStore(st *store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithGatherer serves the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New builds the router. The server owns the controller's notification
// channel: nothing else may read from it.
func New(ctrl *controller.Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:     ctrl,
		gatherer: prometheus.DefaultGatherer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger, 64)
	go s.hub.run(ctrl.Notifications())

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health/live", s.live)
	r.GET("/health/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.POST("/nesting/start", s.startNesting)
	api.POST("/nesting/stop", s.stopNesting)
	api.GET("/nesting/events", s.events)
	api.POST("/sheets/analyze", s.analyzeSheet)

	if s.store != nil {
		api.GET("/orders", s.listOrders)
		api.GET("/orders/:id/nesting", s.getOrderNesting)
		api.PUT("/orders/:id/nesting", s.saveOrderNesting)
		api.DELETE("/orders/:id/nesting", s.deleteOrderNesting)
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
